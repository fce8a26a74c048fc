package web

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestServiceLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	s := NewService(context.Background(), "127.0.0.1:0", mux)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("body = %q", body)
	}

	s.Stop()
	select {
	case err := <-s.Done():
		if err != nil {
			t.Errorf("Done: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
	if err := s.Start(); err == nil {
		t.Error("Start after Stop succeeded")
	}
}

func TestStartBindError(t *testing.T) {
	a := NewService(context.Background(), "127.0.0.1:0", http.NewServeMux())
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()
	b := NewService(context.Background(), a.Addr(), http.NewServeMux())
	if err := b.Start(); err == nil {
		b.Stop()
		t.Fatal("second bind on the same address succeeded")
	}
}
