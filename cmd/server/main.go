package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tilerealm.gg/internal/mapsource"
	persistlog "tilerealm.gg/internal/persistence/log"
	"tilerealm.gg/internal/sim/multizone"
	"tilerealm.gg/internal/sim/tuning"
	"tilerealm.gg/internal/sim/zone"
	"tilerealm.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		zonesPath  = flag.String("zones", "", "path to zones.yaml (default: <configs>/zones.yaml)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		mapDir     = flag.String("maps", "", "yaml map directory (default: <configs>/maps)")
		mapDB      = flag.String("mapdb", "", "sqlite map database (overrides -maps when set)")
		logJSON    = flag.Bool("log_json", false, "log in json format")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if *logJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	log := logger.WithField("component", "server")

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Fatal("load tuning")
		}
		log.WithField("path", tp).Info("tuning not found, using defaults")
		tune = tuning.Defaults()
	}

	zp := strings.TrimSpace(*zonesPath)
	if zp == "" {
		zp = filepath.Join(*configDir, "zones.yaml")
		if _, err := os.Stat(zp); err != nil {
			zp = ""
		}
	}
	zonesCfg, err := multizone.Load(zp)
	if err != nil {
		log.WithError(err).Fatal("load zones config")
	}

	src, closeSrc, err := openMapSource(*configDir, *mapDir, *mapDB)
	if err != nil {
		log.WithError(err).Fatal("open map source")
	}
	defer closeSrc()

	manager, err := multizone.NewManager(zonesCfg, tune, src, log)
	if err != nil {
		log.WithError(err).Fatal("manager")
	}

	// One tick log per zone under the data directory, rotated hourly.
	var tickLogs []*persistlog.TickLogger
	manager.SetTickLoggers(func(zoneID string) zone.TickLogger {
		tl := persistlog.NewTickLogger(filepath.Join(*dataDir, "zones", zoneID))
		tickLogs = append(tickLogs, tl)
		return tl
	})
	defer func() {
		for _, tl := range tickLogs {
			_ = tl.Close()
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(rw, "# HELP tilerealm_zone_tick Current zone tick.\n")
		fmt.Fprintf(rw, "# TYPE tilerealm_zone_tick gauge\n")
		for _, ref := range manager.Manifest() {
			rt := manager.Runtime(ref.ZoneID)
			if rt == nil {
				continue
			}
			fmt.Fprintf(rw, "tilerealm_zone_tick{zone=%q} %d\n", ref.ZoneID, rt.Zone.CurrentTick())
		}
	})
	mux.HandleFunc("/v1/zones", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(manager.Manifest())
	})
	if envBool("TR_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(manager, log).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		if err := manager.Close(ctx2); err != nil {
			log.WithError(err).Warn("zone shutdown")
		}
		_ = srv.Shutdown(ctx2)
	}()

	log.WithField("addr", *addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("ListenAndServe")
	}
}

// openMapSource picks the map backend: sqlite when -mapdb is set, otherwise
// the yaml map directory.
func openMapSource(configDir, mapDir, mapDB string) (mapsource.Source, func(), error) {
	if strings.TrimSpace(mapDB) != "" {
		db, err := mapsource.OpenSQLite(mapDB)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}
	dir := strings.TrimSpace(mapDir)
	if dir == "" {
		dir = filepath.Join(configDir, "maps")
	}
	return mapsource.NewYAMLSource(dir), func() {}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
