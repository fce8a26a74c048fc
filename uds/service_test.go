package uds

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/templates"
)

func startService(t *testing.T, cmds map[string]CmdHnd) *Service {
	t.Helper()
	// t.TempDir paths can exceed the unix socket path limit
	dir, err := os.MkdirTemp("", "uds")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	s := NewService(context.Background(), filepath.Join(dir, "ctl.sock"), cmds)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		s.Stop()
		select {
		case err := <-s.Done():
			if err != nil {
				t.Errorf("Done: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("service did not stop")
		}
	})
	return s
}

func roundTrip(t *testing.T, s *Service, input string) string {
	t.Helper()
	c, err := net.Dial("unix", s.SocketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(10 * time.Second))
	if _, err := io.WriteString(c, input); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := io.ReadAll(c)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(out)
}

func testCommands() map[string]CmdHnd {
	reg := fonts.NewRegistry(fonts.Options{IgnoreSystem: true, Embedded: true})
	store := templates.NewMemStore()
	store.Store("invoice", "= Invoice")
	store.Store("letters/welcome", "Hi")
	failing := map[string]CmdHnd{
		"fail": {Desc: "always fails", Fn: func([]string, io.Writer) error { return errors.New("nope") }},
	}
	return Merge(FontCommands(reg), TemplateCommands(store, time.Second), failing)
}

func TestCommands(t *testing.T) {
	s := startService(t, testCommands())

	tests := []struct {
		name  string
		input string
		want  []string
		not   []string
	}{
		{"fonts list", "fonts-list\n", []string{"Go\n", "Go Mono\n", "-- loaded at "}, nil},
		{"fonts list filtered", "fonts-list MONO\n", []string{"Go Mono\n"}, []string{"Go\n"}},
		{"fonts reload", "fonts-reload\n", []string{"reloaded: 5 faces, 2 families"}, nil},
		{"templates", "templates-list\n", []string{"invoice\nletters/welcome\n"}, nil},
		{"help is sorted", "help\nquit\n", []string{"fail", "fonts-list [substr]", "quit"}, nil},
		{"unknown then quit", "bogus\nquit\n", []string{"unknown command: bogus\n"}, nil},
		{"failing command", "fail\n", []string{"error: nope\n"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, s, tt.input)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output %q does not contain %q", got, w)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(got, n) {
					t.Errorf("output %q contains %q", got, n)
				}
			}
		})
	}
}

func TestHelpOrder(t *testing.T) {
	s := startService(t, testCommands())
	got := roundTrip(t, s, "help\nquit\n")
	a, b := strings.Index(got, "fonts-reload"), strings.Index(got, "templates-list")
	if a < 0 || b < 0 || a > b {
		t.Errorf("help not sorted:\n%s", got)
	}
}

func TestStartTwice(t *testing.T) {
	s := startService(t, nil)
	if err := s.Start(); err == nil {
		t.Error("second Start succeeded")
	}
}
