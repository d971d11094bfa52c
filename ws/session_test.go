package ws

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	gws "github.com/gobwas/ws"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/kbukum/base-api/relay"
)

// testPeer is the client side of a net.Pipe session. A background goroutine
// drains server frames so session writes never stall.
type testPeer struct {
	conn   net.Conn
	frames chan gws.Frame
}

func (p *testPeer) readLoop() {
	for {
		f, err := gws.ReadFrame(p.conn)
		if err != nil {
			close(p.frames)
			return
		}
		p.frames <- f
	}
}

func (p *testPeer) send(t *testing.T, f gws.Frame) {
	t.Helper()
	if err := gws.WriteFrame(p.conn, gws.MaskFrameInPlace(f)); err != nil {
		t.Fatalf("peer write: %v", err)
	}
}

// recv returns the next server frame, skipping pings.
func (p *testPeer) recv(t *testing.T) gws.Frame {
	t.Helper()
	for {
		select {
		case f, ok := <-p.frames:
			if !ok {
				t.Fatal("peer connection closed while waiting for frame")
			}
			if f.Header.OpCode == gws.OpPing {
				continue
			}
			return f
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for server frame")
		}
	}
}

// dispatched records complete messages that pass the dispatcher.
type dispatched struct {
	mu       sync.Mutex
	messages [][]byte
	notify   chan struct{}
}

func newSessionDispatcher() (*Dispatcher, *dispatched) {
	rec := &dispatched{notify: make(chan struct{}, 16)}
	d := NewDispatcher()
	d.Register(CommandBasic, func(_ context.Context, data bson.Raw) error {
		var cmd BasicCommand
		if err := bson.Unmarshal(data, &cmd); err != nil {
			return err
		}
		rec.mu.Lock()
		rec.messages = append(rec.messages, append([]byte(nil), data...))
		rec.mu.Unlock()
		rec.notify <- struct{}{}
		return nil
	})
	return d, rec
}

func (r *dispatched) waitForCall(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never invoked")
	}
}

func (r *dispatched) assertNoCall(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case <-r.notify:
		t.Fatal("dispatcher invoked unexpectedly")
	case <-time.After(within):
	}
}

func (r *dispatched) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func startSession(t *testing.T, cfg Config, d *Dispatcher) (*testPeer, *relay.Hub) {
	t.Helper()

	hub := relay.NewHub()
	go hub.Run()

	server, client := net.Pipe()
	session := NewSession("test-session", server, cfg, hub, d)

	done := make(chan struct{})
	go func() {
		session.Run(context.Background())
		close(done)
	}()

	peer := &testPeer{conn: client, frames: make(chan gws.Frame, 64)}
	go peer.readLoop()

	t.Cleanup(func() {
		client.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("session did not shut down")
		}
		hub.Stop()
	})
	return peer, hub
}

// waitForSubscribers blocks until the hub sees the expected session count.
func waitForSubscribers(t *testing.T, hub *relay.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d subscribers", want)
}

func watchSubscriber(t *testing.T, hub *relay.Hub, id string) *relay.Subscriber {
	t.Helper()
	sub := relay.NewSubscriber(id)
	hub.Register(sub)
	return sub
}

func relayedFrame(t *testing.T, sub *relay.Subscriber) []byte {
	t.Helper()
	select {
	case frame := <-sub.Frames():
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed frame")
		return nil
	}
}

func basicEnvelope(t *testing.T) []byte {
	t.Helper()
	return marshalEnvelope(t, 0, bson.D{
		{Key: "timestamp", Value: int32(100)},
		{Key: "target", Value: int32(1)},
		{Key: "command", Value: int32(2)},
	})
}

func quietConfig() Config {
	return Config{ClientTimeout: time.Hour}
}

func TestSessionDispatchesAndRelaysBinaryMessage(t *testing.T) {
	d, rec := newSessionDispatcher()
	peer, hub := startSession(t, quietConfig(), d)
	waitForSubscribers(t, hub, 1)
	watcher := watchSubscriber(t, hub, "watcher")
	waitForSubscribers(t, hub, 2)

	payload := basicEnvelope(t)
	peer.send(t, gws.NewBinaryFrame(append([]byte(nil), payload...)))

	rec.waitForCall(t)
	if got := relayedFrame(t, watcher); !bytes.Equal(got, payload) {
		t.Errorf("relayed frame differs from sent message")
	}
}

func TestSessionReassemblesFragments(t *testing.T) {
	d, rec := newSessionDispatcher()
	peer, hub := startSession(t, quietConfig(), d)
	waitForSubscribers(t, hub, 1)
	watcher := watchSubscriber(t, hub, "watcher")
	waitForSubscribers(t, hub, 2)

	payload := basicEnvelope(t)
	third := len(payload) / 3
	peer.send(t, gws.NewFrame(gws.OpBinary, false, append([]byte(nil), payload[:third]...)))
	peer.send(t, gws.NewFrame(gws.OpContinuation, false, append([]byte(nil), payload[third:2*third]...)))
	peer.send(t, gws.NewFrame(gws.OpContinuation, true, append([]byte(nil), payload[2*third:]...)))

	rec.waitForCall(t)
	if got := relayedFrame(t, watcher); !bytes.Equal(got, payload) {
		t.Errorf("reassembled message differs from original")
	}
	if rec.count() != 1 {
		t.Errorf("dispatched %d times, want 1", rec.count())
	}
}

func TestSessionIgnoresOrphanContinuation(t *testing.T) {
	d, rec := newSessionDispatcher()
	peer, hub := startSession(t, quietConfig(), d)
	waitForSubscribers(t, hub, 1)

	peer.send(t, gws.NewFrame(gws.OpContinuation, false, []byte{1, 2, 3}))
	peer.send(t, gws.NewFrame(gws.OpContinuation, true, []byte{4, 5, 6}))
	rec.assertNoCall(t, 100*time.Millisecond)

	// The session must still be serving.
	peer.send(t, gws.NewBinaryFrame(basicEnvelope(t)))
	rec.waitForCall(t)
}

func TestSessionDiscardsUnfinishedMessageOnNewStart(t *testing.T) {
	d, rec := newSessionDispatcher()
	peer, hub := startSession(t, quietConfig(), d)
	waitForSubscribers(t, hub, 1)

	payload := basicEnvelope(t)
	half := len(payload) / 2

	// Abandoned first message, then a complete second one.
	peer.send(t, gws.NewFrame(gws.OpBinary, false, []byte("stale partial")))
	peer.send(t, gws.NewFrame(gws.OpBinary, false, append([]byte(nil), payload[:half]...)))
	peer.send(t, gws.NewFrame(gws.OpContinuation, true, append([]byte(nil), payload[half:]...)))

	rec.waitForCall(t)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.messages) != 1 {
		t.Fatalf("dispatched %d messages, want 1", len(rec.messages))
	}
}

func TestSessionIgnoresTextFrames(t *testing.T) {
	d, rec := newSessionDispatcher()
	peer, hub := startSession(t, quietConfig(), d)
	waitForSubscribers(t, hub, 1)

	peer.send(t, gws.NewTextFrame([]byte("hello")))
	rec.assertNoCall(t, 100*time.Millisecond)

	peer.send(t, gws.NewBinaryFrame(basicEnvelope(t)))
	rec.waitForCall(t)
}

func TestSessionAnswersPingWithPayload(t *testing.T) {
	d, _ := newSessionDispatcher()
	peer, hub := startSession(t, quietConfig(), d)
	waitForSubscribers(t, hub, 1)

	peer.send(t, gws.NewPingFrame([]byte("probe")))

	f := peer.recv(t)
	if f.Header.OpCode != gws.OpPong {
		t.Fatalf("opcode = %v, want pong", f.Header.OpCode)
	}
	if string(f.Payload) != "probe" {
		t.Errorf("pong payload = %q, want %q", f.Payload, "probe")
	}
}

func TestSessionEchoesCloseReason(t *testing.T) {
	d, _ := newSessionDispatcher()
	peer, hub := startSession(t, quietConfig(), d)
	waitForSubscribers(t, hub, 1)

	body := gws.NewCloseFrameBody(gws.StatusNormalClosure, "done here")
	peer.send(t, gws.NewCloseFrame(body))

	f := peer.recv(t)
	if f.Header.OpCode != gws.OpClose {
		t.Fatalf("opcode = %v, want close", f.Header.OpCode)
	}
	code, reason := gws.ParseCloseFrameData(f.Payload)
	if code != gws.StatusNormalClosure || reason != "done here" {
		t.Errorf("close echo = (%d, %q), want (%d, %q)", code, reason, gws.StatusNormalClosure, "done here")
	}
	waitForSubscribers(t, hub, 0)
}

func TestSessionWritesRelayedFrames(t *testing.T) {
	d, _ := newSessionDispatcher()
	peer, hub := startSession(t, quietConfig(), d)
	waitForSubscribers(t, hub, 1)

	payload := basicEnvelope(t)
	hub.Publish("someone-else", payload)

	f := peer.recv(t)
	if f.Header.OpCode != gws.OpBinary {
		t.Fatalf("opcode = %v, want binary", f.Header.OpCode)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("relayed payload differs")
	}
}

func TestSessionDisconnectsSilentPeer(t *testing.T) {
	d, _ := newSessionDispatcher()
	peer, hub := startSession(t, Config{ClientTimeout: 200 * time.Millisecond}, d)
	waitForSubscribers(t, hub, 1)

	// Without any client traffic the server must ping and eventually give
	// up with a close frame.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-peer.frames:
			if !ok {
				t.Fatal("connection closed without a close frame")
			}
			switch f.Header.OpCode {
			case gws.OpPing:
				// Deliberately unanswered.
			case gws.OpClose:
				waitForSubscribers(t, hub, 0)
				return
			default:
				t.Fatalf("unexpected frame %v", f.Header.OpCode)
			}
		case <-deadline:
			t.Fatal("session never timed out silent peer")
		}
	}
}

func TestSessionDisconnectsPeerIgnoringPings(t *testing.T) {
	d, _ := newSessionDispatcher()
	peer, hub := startSession(t, Config{ClientTimeout: 200 * time.Millisecond}, d)
	waitForSubscribers(t, hub, 1)

	// Data frames alone are not liveness: a peer streaming messages while
	// never answering pings must still be timed out.
	payload := basicEnvelope(t)
	stream := time.NewTicker(50 * time.Millisecond)
	defer stream.Stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-stream.C:
			// Ignore write errors: the session may have already closed
			// the connection between ticks.
			_ = gws.WriteFrame(peer.conn, gws.MaskFrameInPlace(gws.NewBinaryFrame(payload)))
		case f, ok := <-peer.frames:
			if !ok {
				t.Fatal("connection closed without a close frame")
			}
			switch f.Header.OpCode {
			case gws.OpPing:
				// Deliberately unanswered.
			case gws.OpClose:
				waitForSubscribers(t, hub, 0)
				return
			default:
				t.Fatalf("unexpected frame %v", f.Header.OpCode)
			}
		case <-deadline:
			t.Fatal("streaming peer kept the session alive without answering pings")
		}
	}
}

func TestSessionEndsWhenContextCanceled(t *testing.T) {
	hub := relay.NewHub()
	go hub.Run()
	defer hub.Stop()

	server, client := net.Pipe()
	defer client.Close()
	d, _ := newSessionDispatcher()
	session := NewSession("ctx-session", server, quietConfig(), hub, d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()

	peer := &testPeer{conn: client, frames: make(chan gws.Frame, 64)}
	go peer.readLoop()
	waitForSubscribers(t, hub, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end on context cancel")
	}
}
