package ws

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pkworld.ai/internal/protocol"
	"pkworld.ai/internal/sim/world"
)

// World is the part of the simulation the transport talks to.
type World interface {
	Join() chan<- world.JoinRequest
	Leave() chan<- string
	Inbox() chan<- world.PickupRequest
}

type Server struct {
	world World
	log   *log.Logger
	// Strict validates inbound messages against the embedded schemas.
	Strict bool

	upgrader websocket.Upgrader
}

func NewServer(w World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
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

		entityID, out := s.handshake(conn, remoteHost(r))
		if entityID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypePickup {
				continue
			}
			if s.Strict {
				if err := protocol.Validate(msg); err != nil {
					if s.log != nil {
						s.log.Printf("ws: %s: invalid %s: %v", entityID, base.Type, err)
					}
					continue
				}
			}
			var p protocol.PickupMsg
			if err := json.Unmarshal(msg, &p); err != nil || p.ProtocolVersion != protocol.Version {
				continue
			}
			s.world.Inbox() <- world.PickupRequest{EntityID: entityID, GroundID: p.GroundID}
		}

		s.world.Leave() <- entityID
	}
}

func (s *Server) handshake(conn *websocket.Conn, host string) (entityID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	if err := protocol.Validate(msg); err != nil {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
		closeWith(conn, "bad HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{
		EntityID: hello.EntityID,
		Host:     host,
		Out:      out,
		Resp:     respCh,
	}
	resp := <-respCh
	if resp.Err != nil {
		_ = writeJSON(conn, resp.Err)
		closeWith(conn, resp.Err.Code)
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- resp.Welcome.EntityID
		return "", nil
	}
	if s.log != nil {
		s.log.Printf("ws: %s connected from %s", resp.Welcome.EntityID, host)
	}
	return resp.Welcome.EntityID, out
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
