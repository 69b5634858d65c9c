package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tilerealm.gg/internal/protocol"
	"tilerealm.gg/internal/sim/multizone"
	"tilerealm.gg/internal/sim/route"
	"tilerealm.gg/internal/sim/zone"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second
	outQueue         = 64
)

type Server struct {
	manager *multizone.Manager
	log     logrus.FieldLogger

	upgrader websocket.Upgrader
}

func NewServer(m *multizone.Manager, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		manager: m,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, rt, out, ok := s.handshake(conn)
		if !ok {
			return
		}
		log := s.log.WithFields(logrus.Fields{"actor": sess.ActorID, "zone": sess.CurrentZone})
		log.Info("session opened")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, chOk := <-out:
					if !chOk {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				s.sendError(out, protocol.ErrProtoBadRequest, "expected ACT")
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				s.sendError(out, protocol.ErrProtoBadRequest, "malformed ACT")
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				s.sendError(out, protocol.ErrBadProtocol, "unsupported protocol_version")
				continue
			}
			rt = s.dispatch(ctx, out, &sess, rt, act)
			if rt == nil {
				cancel()
				break
			}
		}

		s.manager.Leave(sess)
		log.Info("session closed")
	}
}

// dispatch routes one ACT message, returning the (possibly changed) runtime.
// A nil return means the session is unrecoverable and must be closed. All
// replies go through the out channel; the writer goroutine owns the conn.
func (s *Server) dispatch(ctx context.Context, out chan []byte, sess *multizone.Session, rt *multizone.Runtime, act protocol.ActMsg) *multizone.Runtime {
	switch act.Action {
	case protocol.ActionMoveRoute:
		cmds, err := route.Parse(act.Route)
		if err != nil {
			s.sendError(out, protocol.ErrBadRoute, err.Error())
			return rt
		}
		select {
		case rt.Zone.Inbox() <- zone.ActionEnvelope{ActorID: sess.ActorID, Commands: cmds}:
		default:
			s.sendError(out, protocol.ErrInternal, "zone inbox busy")
		}
	case protocol.ActionChangeMap:
		next, err := s.switchZone(ctx, sess, act.TargetMapID)
		if err != nil {
			s.sendError(out, protocol.ErrMapDenied, err.Error())
			if errors.Is(err, multizone.ErrSessionLost) {
				return nil
			}
			return rt
		}
		// Re-welcome on the new map so the client can reset its view.
		if b, err := json.Marshal(s.welcome(*sess, next)); err == nil {
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
		return next
	default:
		s.sendError(out, protocol.ErrProtoBadRequest, "unknown action "+act.Action)
	}
	return rt
}

func (s *Server) switchZone(ctx context.Context, sess *multizone.Session, target string) (*multizone.Runtime, error) {
	old := sess.CurrentZone
	rt, err := s.manager.SwitchZone(ctx, sess, target)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"actor": sess.ActorID, "from": old, "to": sess.CurrentZone}).Info("zone switched")
	return rt, nil
}

func (s *Server) handshake(conn *websocket.Conn) (multizone.Session, *multizone.Runtime, chan []byte, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return multizone.Session{}, nil, nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.closePolicy(conn, "expected HELLO")
		return multizone.Session{}, nil, nil, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.closePolicy(conn, "malformed HELLO")
		return multizone.Session{}, nil, nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		s.closePolicy(conn, "bad protocol_version")
		return multizone.Session{}, nil, nil, false
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}

	out := make(chan []byte, outQueue)
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	sess, rt, err := s.manager.Join(ctx, hello.MapID, hello.PlayerName, 0, 0, out)
	if err != nil {
		s.log.WithError(err).WithField("map", hello.MapID).Warn("join refused")
		_ = writeJSON(conn, protocol.NewError(protocol.ErrUnknownMap, err.Error()))
		return multizone.Session{}, nil, nil, false
	}

	if err := writeJSON(conn, s.welcome(sess, rt)); err != nil {
		s.manager.Leave(sess)
		return multizone.Session{}, nil, nil, false
	}
	return sess, rt, out, true
}

func (s *Server) welcome(sess multizone.Session, rt *multizone.Runtime) protocol.WelcomeMsg {
	def := rt.Zone.Def()
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ActorID:         sess.ActorID,
		MapID:           sess.CurrentZone,
		MapParams: protocol.MapParams{
			TickRateHz:  rt.Zone.TickRateHz(),
			WidthTiles:  def.Width,
			HeightTiles: def.Height,
			TileWidth:   def.TileWidth,
			TileHeight:  def.TileHeight,
		},
		ZoneManifest: s.manager.Manifest(),
	}
}

func (s *Server) sendError(out chan []byte, code, message string) {
	b, err := json.Marshal(protocol.NewError(code, message))
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
