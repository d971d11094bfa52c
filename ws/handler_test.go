package ws

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gobwas/ws"

	"github.com/kbukum/base-api/relay"
)

// The websocket endpoint accepts connections without any credential; the
// handshake here carries no Authorization header.
func TestHandlerUpgradesWithoutCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := relay.NewHub()
	go hub.Run()
	defer hub.Stop()

	d, _ := newSessionDispatcher()
	handler := NewHandler(context.Background(), quietConfig(), hub, d)

	engine := gin.New()
	engine.GET("/ws", handler.Handle)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	url := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/ws"
	conn, br, _, err := gws.Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	defer conn.Close()

	reader := io.Reader(conn)
	if br != nil {
		reader = br
	}

	// A ping round trip proves the session loop is serving the connection.
	ping := gws.NewPingFrame([]byte("hello"))
	if err := gws.WriteFrame(conn, gws.MaskFrameInPlace(ping)); err != nil {
		t.Fatalf("ping write: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	f, err := gws.ReadFrame(reader)
	if err != nil {
		t.Fatalf("read server frame: %v", err)
	}
	if f.Header.OpCode != gws.OpPong || !bytes.Equal(f.Payload, []byte("hello")) {
		t.Fatalf("expected pong echo, got %v %q", f.Header.OpCode, f.Payload)
	}
}
