package routing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type tagWrapper struct {
	tag   string
	trail *[]string
}

func (t tagWrapper) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*t.trail = append(*t.trail, t.tag)
		next.ServeHTTP(w, r)
	})
}

func TestGroupWrapperOrder(t *testing.T) {
	var trail []string
	r := &BaseRouter{ServeMux: http.NewServeMux()}
	r.Group("/api/", func(g *RouteGroup) {
		g.HandleFunc("GET fonts", func(w http.ResponseWriter, _ *http.Request) {
			trail = append(trail, "handler")
			w.WriteHeader(http.StatusNoContent)
		}, tagWrapper{"route", &trail})
	}, tagWrapper{"group", &trail})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/fonts", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if diff := cmp.Diff([]string{"group", "route", "handler"}, trail); diff != "" {
		t.Errorf("wrapper order (-want +got):\n%s", diff)
	}
}

func TestGroupPatterns(t *testing.T) {
	r := &BaseRouter{ServeMux: http.NewServeMux()}
	r.Group("/", func(g *RouteGroup) {
		g.HandleFunc("GET {$}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		g.HandleFunc("fonts", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})
	tests := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/", http.StatusNoContent},
		{http.MethodPost, "/", http.StatusMethodNotAllowed},
		{http.MethodGet, "/other", http.StatusNotFound},
		{http.MethodPut, "/fonts", http.StatusAccepted},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.target, rec.Code, tt.want)
		}
	}
}

func TestGroupRejectsDoubleSlash(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Handle accepted a pattern with //")
		}
	}()
	r := &BaseRouter{ServeMux: http.NewServeMux()}
	r.Group("/api/", func(g *RouteGroup) {
		g.HandleFunc("GET /fonts", func(http.ResponseWriter, *http.Request) {})
	})
}

func TestRecoverWrapper(t *testing.T) {
	r := &BaseRouter{ServeMux: http.NewServeMux()}
	r.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}, HandlerWrapperFunc(RecoverWrapper))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal server error.") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
