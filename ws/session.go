package ws

import (
	"bytes"
	"context"
	"net"
	"time"

	gws "github.com/gobwas/ws"

	"github.com/kbukum/base-api/logger"
	"github.com/kbukum/base-api/relay"
)

// Session is one websocket peer. A reader goroutine decodes frames off the
// wire; the Run loop owns all state (fragment buffer, liveness clock) and
// is the only writer to the connection.
type Session struct {
	id         string
	conn       net.Conn
	cfg        Config
	hub        *relay.Hub
	dispatcher *Dispatcher
	log        *logger.Logger

	// fragments accumulates an in-flight fragmented message. A nil buffer
	// means no message is being assembled.
	fragments *bytes.Buffer
}

// NewSession wraps an upgraded connection. Run must be called to serve it.
func NewSession(id string, conn net.Conn, cfg Config, hub *relay.Hub, dispatcher *Dispatcher) *Session {
	cfg.ApplyDefaults()
	return &Session{
		id:         id,
		conn:       conn,
		cfg:        cfg,
		hub:        hub,
		dispatcher: dispatcher,
		log: logger.WithComponent("ws").WithFields(logger.Fields(
			logger.FieldSessionID, id,
			logger.FieldPeer, conn.RemoteAddr().String(),
		)),
	}
}

// Run serves the session until the peer closes, goes silent past the client
// timeout, the context is canceled, or the hub shuts down. It always leaves
// the connection closed and the relay subscription released.
func (s *Session) Run(ctx context.Context) {
	defer s.conn.Close()

	sub := relay.NewSubscriber(s.id)
	s.hub.Register(sub)
	defer s.hub.Unregister(sub)

	loopDone := make(chan struct{})
	defer close(loopDone)

	inbound := make(chan frame)
	readErr := make(chan error, 1)
	go s.readLoop(inbound, readErr, loopDone)

	heartbeat := time.NewTicker(s.cfg.heartbeatInterval())
	defer heartbeat.Stop()

	s.log.Info("Session started")
	lastSeen := time.Now()

	for {
		select {
		case <-ctx.Done():
			s.writeClose(gws.StatusGoingAway, "server shutting down")
			s.log.Info("Session closed on shutdown")
			return

		case err := <-readErr:
			s.log.Info("Session read ended", logger.Fields(logger.FieldError, err.Error()))
			return

		case f := <-inbound:
			// Only probes and probe replies count as liveness. A peer
			// streaming data but never answering pings still times out.
			if f.kind == kindPing || f.kind == kindPong {
				lastSeen = time.Now()
			}
			if done := s.handleFrame(ctx, f); done {
				return
			}

		case relayed, ok := <-sub.Frames():
			if !ok {
				s.writeClose(gws.StatusGoingAway, "relay shutting down")
				s.log.Info("Session closed on relay shutdown")
				return
			}
			if err := s.writeFrame(gws.NewBinaryFrame(relayed)); err != nil {
				s.log.Warn("Relay write failed", logger.Fields(logger.FieldError, err.Error()))
				return
			}

		case <-heartbeat.C:
			if time.Since(lastSeen) > s.cfg.ClientTimeout {
				s.log.Warn("Peer heartbeat timed out, disconnecting")
				s.writeClose(gws.StatusGoingAway, "heartbeat timeout")
				return
			}
			if err := s.writeFrame(gws.NewPingFrame(nil)); err != nil {
				s.log.Warn("Ping write failed", logger.Fields(logger.FieldError, err.Error()))
				return
			}
		}
	}
}

// readLoop decodes frames off the wire and hands them to Run. It exits on
// the first read error, which includes the connection close triggered by
// Run returning.
func (s *Session) readLoop(inbound chan<- frame, readErr chan<- error, done <-chan struct{}) {
	for {
		f, err := readFrame(s.conn, s.cfg.MaxFrameSize)
		if err != nil {
			readErr <- err
			return
		}
		select {
		case inbound <- f:
		case <-done:
			return
		}
	}
}

// handleFrame processes one inbound frame. It reports true when the session
// should end.
func (s *Session) handleFrame(ctx context.Context, f frame) bool {
	switch f.kind {
	case kindBinary:
		s.handleMessage(ctx, f.payload)

	case kindFragStart:
		if s.fragments != nil {
			s.log.Warn("New fragmented message started before previous one finished, discarding buffer", logger.Fields(
				"discarded_bytes", s.fragments.Len(),
			))
		}
		s.fragments = bytes.NewBuffer(nil)
		s.fragments.Write(f.payload)

	case kindFragContinue:
		if s.fragments == nil {
			s.log.Warn("Continuation frame without a started message, ignoring")
			return false
		}
		s.fragments.Write(f.payload)

	case kindFragEnd:
		if s.fragments == nil {
			s.log.Warn("Final fragment without a started message, ignoring")
			return false
		}
		s.fragments.Write(f.payload)
		message := s.fragments.Bytes()
		s.fragments = nil
		s.handleMessage(ctx, message)

	case kindPing:
		if err := s.writeFrame(gws.NewPongFrame(f.payload)); err != nil {
			s.log.Warn("Pong write failed", logger.Fields(logger.FieldError, err.Error()))
			return true
		}

	case kindPong:
		// Liveness already refreshed in the loop.

	case kindText:
		s.log.Debug("Text frame ignored")

	case kindClose:
		s.writeFrame(gws.NewCloseFrame(f.payload))
		s.log.Info("Session closed by peer")
		return true
	}
	return false
}

// handleMessage dispatches one complete message and relays the raw bytes to
// the other sessions. A message the dispatcher rejects is dropped, not
// relayed.
func (s *Session) handleMessage(ctx context.Context, message []byte) {
	if err := s.dispatcher.Dispatch(ctx, message); err != nil {
		s.log.Warn("Message dropped", logger.Fields(logger.FieldError, err.Error()))
		return
	}
	s.hub.Publish(s.id, message)
}

func (s *Session) writeFrame(f gws.Frame) error {
	if s.cfg.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	return gws.WriteFrame(s.conn, f)
}

func (s *Session) writeClose(code gws.StatusCode, reason string) {
	f := gws.NewCloseFrame(gws.NewCloseFrameBody(code, reason))
	if err := s.writeFrame(f); err != nil {
		s.log.Debug("Close write failed", logger.Fields(logger.FieldError, err.Error()))
	}
}
