package soundservice

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSStreamProtocolReadsBinaryFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.BinaryMessage, []byte("hello "))
		conn.WriteMessage(websocket.BinaryMessage, []byte("world"))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	p := NewWSStreamProtocol(2 * time.Second)
	stream, err := p.OpenURI("live", WSStreamDirective{URL: wsURL})
	if err != nil {
		t.Fatalf("OpenURI: %v", err)
	}
	defer stream.Close()

	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("got %q, want %q", got, "hello world")
	}
}

func TestWSStreamProtocolRejectsMissingDirective(t *testing.T) {
	p := NewWSStreamProtocol(0)
	if _, err := p.OpenURI("live", nil); err == nil {
		t.Fatal("expected error for missing directive")
	}
}

func TestWSStreamProtocolSuffix(t *testing.T) {
	p := WSStreamProtocol{}
	if got := p.Suffix(WSStreamDirective{URL: "ws://x/y"}); got != "ws://x/y" {
		t.Errorf("Suffix = %q, want %q", got, "ws://x/y")
	}
	if got := p.Suffix(nil); got != "" {
		t.Errorf("Suffix(nil) = %q, want empty", got)
	}
}
