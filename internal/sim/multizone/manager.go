package multizone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tilerealm.gg/internal/mapsource"
	"tilerealm.gg/internal/persistence/snapshot"
	"tilerealm.gg/internal/protocol"
	"tilerealm.gg/internal/sim/tuning"
	"tilerealm.gg/internal/sim/zone"
)

const (
	zoneRequestTimeout   = 3 * time.Second
	zoneLeaveSendTimeout = 300 * time.Millisecond
)

// ErrUnknownZone is returned for zone ids absent from the manifest.
var ErrUnknownZone = errors.New("unknown zone")

// ErrSessionLost means the session's actor no longer exists in any zone.
// Transports must close the connection; the session cannot be routed again.
var ErrSessionLost = errors.New("session lost")

// Session tracks one connected player across zone changes.
type Session struct {
	ActorID     string
	Name        string
	CurrentZone string
	Out         chan []byte
}

// Runtime is one loaded zone and its loop goroutine.
type Runtime struct {
	Spec ZoneSpec
	Zone *zone.Zone

	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the zone registry. Zones load lazily on first use: a map
// definition is parsed once and its scenario events instantiate once, no
// matter how many sessions ask for the zone.
type Manager struct {
	mu sync.RWMutex

	cfg Config
	tun tuning.Tuning
	src mapsource.Source
	log logrus.FieldLogger

	runtimes map[string]*Runtime
	manifest []protocol.ZoneRef

	tickLoggers func(zoneID string) zone.TickLogger

	closeOnce sync.Once
}

func NewManager(cfg Config, tun tuning.Tuning, src mapsource.Source, log logrus.FieldLogger) (*Manager, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("nil map source")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		cfg:      cfg,
		tun:      tun,
		src:      src,
		log:      log,
		runtimes: map[string]*Runtime{},
		manifest: cfg.Manifest(),
	}, nil
}

// SetTickLoggers installs a factory consulted once per zone at load time.
func (m *Manager) SetTickLoggers(f func(zoneID string) zone.TickLogger) {
	m.mu.Lock()
	m.tickLoggers = f
	m.mu.Unlock()
}

func (m *Manager) DefaultZoneID() string { return m.cfg.DefaultZoneID }

func (m *Manager) Manifest() []protocol.ZoneRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]protocol.ZoneRef, len(m.manifest))
	copy(out, m.manifest)
	return out
}

// Runtime returns the loaded runtime for id, or nil.
func (m *Manager) Runtime(id string) *Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runtimes[id]
}

// Load returns the zone for id, loading and starting it on first use. A
// failed load is not cached; the next call retries.
func (m *Manager) Load(ctx context.Context, id string) (*Runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rt, ok := m.runtimes[id]; ok {
		return rt, nil
	}
	spec, ok := m.cfg.ZoneSpecByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownZone, id)
	}

	def, err := m.src.MapDef(ctx, spec.MapID)
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", id, err)
	}
	z, err := zone.New(zone.Config{
		ID:            id,
		TickRateHz:    pick(spec.TickRateHz, m.tun.TickRateHz),
		MaxRouteLen:   pick(spec.MaxRouteLen, m.tun.MaxRouteLen),
		GridCellTiles: pick(spec.GridCellTiles, m.tun.GridCellTiles),
	}, def, m.hooksFor(id))
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", id, err)
	}
	if m.tickLoggers != nil {
		if tl := m.tickLoggers(id); tl != nil {
			z.SetTickLogger(tl)
		}
	}
	if spec.SnapshotFile != "" {
		s, err := snapshot.ReadFile(spec.SnapshotFile)
		switch {
		case err == nil:
			z.ApplySnapshot(s)
			m.log.WithFields(logrus.Fields{"zone": id, "tick": s.Header.Tick}).Info("zone state restored")
		case !os.IsNotExist(err):
			m.log.WithError(err).WithField("zone", id).Warn("snapshot unreadable, starting fresh")
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{Spec: spec, Zone: z, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(rt.done)
		if err := z.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.WithError(err).WithField("zone", id).Error("zone loop exited")
		}
	}()
	m.runtimes[id] = rt
	m.log.WithFields(logrus.Fields{"zone": id, "map": spec.MapID}).Info("zone loaded")
	return rt, nil
}

// hooksFor gates map changes to zones present in the manifest. Gameplay
// scripting hooks layer on top via zone configuration in embedding servers.
func (m *Manager) hooksFor(id string) zone.Hooks {
	return manifestHooks{m: m}
}

type manifestHooks struct {
	zone.NopHooks
	m *Manager
}

func (h manifestHooks) CanChangeMap(a *zone.Actor, target string) bool {
	_, ok := h.m.cfg.ZoneSpecByID(target)
	return ok
}

// Join resolves the zone (loading it if needed) and adds a player actor.
func (m *Manager) Join(ctx context.Context, zoneID, name string, x, y float64, out chan []byte) (Session, *Runtime, error) {
	if zoneID == "" {
		zoneID = m.cfg.DefaultZoneID
	}
	rt, err := m.Load(ctx, zoneID)
	if err != nil {
		return Session{}, nil, err
	}
	reqCtx, cancel := requestCtx(ctx)
	defer cancel()
	actorID, err := rt.Zone.RequestJoin(reqCtx, name, x, y, out)
	if err != nil {
		return Session{}, nil, fmt.Errorf("join %s: %w", zoneID, err)
	}
	return Session{ActorID: actorID, Name: name, CurrentZone: zoneID, Out: out}, rt, nil
}

// SwitchZone moves a session's actor to another zone: the source zone gates
// and removes it with full leave semantics, then the actor joins the target.
// The actor id changes; the updated session is written in place.
func (m *Manager) SwitchZone(ctx context.Context, s *Session, target string) (*Runtime, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if target == s.CurrentZone {
		return m.Runtime(target), nil
	}
	src := m.Runtime(s.CurrentZone)
	if src == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownZone, s.CurrentZone)
	}
	dst, err := m.Load(ctx, target)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := requestCtx(ctx)
	defer cancel()
	allowed, err := src.Zone.RequestChangeMap(reqCtx, s.ActorID, target)
	if err != nil {
		return nil, fmt.Errorf("leave %s: %w", s.CurrentZone, err)
	}
	if !allowed {
		return nil, fmt.Errorf("change to %s denied", target)
	}

	actorID, err := dst.Zone.RequestJoin(reqCtx, s.Name, 0, 0, s.Out)
	if err != nil {
		// The source zone already removed the actor. Rejoin it there so the
		// session stays routable; if that fails too the session is lost.
		backCtx, backCancel := requestCtx(ctx)
		defer backCancel()
		backID, backErr := src.Zone.RequestJoin(backCtx, s.Name, 0, 0, s.Out)
		if backErr != nil {
			s.ActorID = ""
			return nil, fmt.Errorf("%w: join %s: %v", ErrSessionLost, target, err)
		}
		s.ActorID = backID
		return nil, fmt.Errorf("join %s: %w", target, err)
	}
	s.ActorID = actorID
	s.CurrentZone = target
	return dst, nil
}

// Leave drops the session's actor, tolerating a busy or stopped zone.
func (m *Manager) Leave(s Session) {
	if s.ActorID == "" {
		return
	}
	rt := m.Runtime(s.CurrentZone)
	if rt == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), zoneLeaveSendTimeout)
	defer cancel()
	_ = rt.Zone.RequestLeave(ctx, s.ActorID)
}

// Unload snapshots (when configured), stops and forgets one zone.
func (m *Manager) Unload(ctx context.Context, id string) error {
	m.mu.Lock()
	rt, ok := m.runtimes[id]
	if ok {
		delete(m.runtimes, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.shutdown(ctx, id, rt)
}

func (m *Manager) shutdown(ctx context.Context, id string, rt *Runtime) error {
	var err error
	if rt.Spec.SnapshotFile != "" {
		reqCtx, cancel := requestCtx(ctx)
		s, serr := rt.Zone.RequestSnapshot(reqCtx)
		cancel()
		if serr != nil {
			err = fmt.Errorf("snapshot %s: %w", id, serr)
		} else if werr := snapshot.WriteFile(rt.Spec.SnapshotFile, s); werr != nil {
			err = fmt.Errorf("snapshot %s: %w", id, werr)
		}
	}
	rt.Zone.Stop()
	rt.cancel()
	select {
	case <-rt.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	m.log.WithField("zone", id).Info("zone unloaded")
	return err
}

// Close unloads every zone. Safe to call more than once.
func (m *Manager) Close(ctx context.Context) error {
	var first error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		rts := make(map[string]*Runtime, len(m.runtimes))
		for id, rt := range m.runtimes {
			rts[id] = rt
		}
		m.runtimes = map[string]*Runtime{}
		m.mu.Unlock()
		for id, rt := range rts {
			if err := m.shutdown(ctx, id, rt); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}

func requestCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, zoneRequestTimeout)
}

func pick(override, fallback int) int {
	if override > 0 {
		return override
	}
	return fallback
}
