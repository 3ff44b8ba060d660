package livereload

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	if n := hub.Broadcast(MessageReload); n != 0 {
		t.Errorf("Broadcast without clients delivered to %d", n)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	waitFor(t, "client registration", func() bool { return hub.Clients() == 1 })

	if n := hub.Broadcast(MessageReload); n != 1 {
		t.Errorf("Broadcast delivered to %d clients, want 1", n)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	typ, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.TextMessage || string(msg) != MessageReload {
		t.Errorf("got %d %q", typ, msg)
	}

	_ = conn.Close()
	waitFor(t, "client removal", func() bool { return hub.Clients() == 0 })
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	hub := NewHub()
	w := httptest.NewRecorder()
	hub.ServeHTTP(w, httptest.NewRequest("GET", "/reload", nil))
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if hub.Clients() != 0 {
		t.Error("a failed upgrade registered a client")
	}
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "qr-code", "src")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "node_modules", "x"), 0o755); err != nil {
		t.Fatal(err)
	}
	changed := make(chan string, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := Watch(ctx, []string{root, filepath.Join(root, "missing")}, func(p string) {
		select {
		case changed <- p:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(nested, "main.ts")
	if err := os.WriteFile(file, []byte("export {}"), 0o600); err != nil {
		t.Fatal(err)
	}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p := <-changed:
			if strings.Contains(p, "node_modules") {
				t.Errorf("node_modules should not be watched: %s", p)
			}
			if p == file {
				return
			}
		case <-timeout:
			t.Fatal("no change reported for a nested file")
		}
	}
}
