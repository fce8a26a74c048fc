package render

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/routing"
	"github.com/zeptools/gw-typst/sec"
	"github.com/zeptools/gw-typst/templates"
	"github.com/zeptools/gw-typst/throttle"
)

var testRegistry = fonts.NewRegistry(fonts.Options{IgnoreSystem: true, Embedded: true})

func newStore() *templates.MemStore {
	s := templates.NewMemStore()
	s.Store("hello", "= Hello\n\nWorld")
	s.Store("letters/post", "Dear #post.name,")
	s.Store("broken", "#nope")
	return s
}

func newServer(t *testing.T, store templates.Store, opts Options, wrappers ...routing.HandlerWrapper) (*Handler, *routing.BaseRouter) {
	t.Helper()
	if opts.Registry == nil {
		opts.Registry = testRegistry
	}
	h := NewHandler(store, opts)
	r := &routing.BaseRouter{ServeMux: http.NewServeMux()}
	h.Register(r, wrappers...)
	return h, r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRenderStatus(t *testing.T) {
	_, r := newServer(t, newStore(), Options{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		text   string
	}{
		{"no template", http.MethodGet, "/", "", http.StatusBadRequest, MsgNoTemplate},
		{"empty template", http.MethodGet, "/?template=", "", http.StatusBadRequest, MsgNoTemplate},
		{"traversal", http.MethodGet, "/?template=../etc/passwd", "", http.StatusNotAcceptable, MsgTraversal},
		{"dots inside a name", http.MethodPost, "/?template=a..b", "{}", http.StatusNotAcceptable, MsgTraversal},
		{"absolute", http.MethodGet, "/?template=/hello", "", http.StatusNotAcceptable, MsgTraversal},
		{"missing", http.MethodGet, "/?template=nothing", "", http.StatusNotFound, MsgNotFound},
		{"compile error", http.MethodGet, "/?template=broken", "", http.StatusInternalServerError,
			"unknown variable: nope\nerror on line 1: #nope"},
		{"payload absent on GET", http.MethodGet, "/?template=letters/post", "", http.StatusInternalServerError,
			`dictionary does not contain key "name"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, tt.method, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.status, rec.Body.String())
			}
			if got := rec.Body.String(); !strings.Contains(got, tt.text) {
				t.Errorf("body = %q, want it to contain %q", got, tt.text)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestRenderPDF(t *testing.T) {
	_, r := newServer(t, newStore(), Options{})

	rec := do(r, http.MethodGet, "/?template=hello", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", rec.Code, rec.Body.String())
	}
	pdf := rec.Body.Bytes()
	if !strings.HasPrefix(string(pdf), "%PDF-") {
		t.Fatalf("body is not a PDF: %q", pdf[:min(len(pdf), 16)])
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if etag, want := rec.Header().Get("ETag"), strconv.Quote(sec.Digest(pdf)); etag != want {
		t.Errorf("ETag = %s, want %s", etag, want)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `inline; filename="hello.pdf"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	// identical input renders identical bytes
	again := do(r, http.MethodGet, "/?template=hello", "")
	if again.Header().Get("ETag") != rec.Header().Get("ETag") {
		t.Error("second render produced a different digest")
	}

	req := httptest.NewRequest(http.MethodGet, "/?template=hello", nil)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	cached := httptest.NewRecorder()
	r.ServeHTTP(cached, req)
	if cached.Code != http.StatusNotModified || cached.Body.Len() != 0 {
		t.Errorf("conditional GET: status %d, %d bytes", cached.Code, cached.Body.Len())
	}
}

func TestRenderPayload(t *testing.T) {
	_, r := newServer(t, newStore(), Options{})

	rec := do(r, http.MethodPost, "/?template=letters/post", `{"name": "Ada"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `inline; filename="post.pdf"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	// an empty POST body binds the empty object
	rec = do(r, http.MethodPost, "/?template=hello", "")
	if rec.Code != http.StatusOK {
		t.Errorf("empty POST: status = %d (body %q)", rec.Code, rec.Body.String())
	}

	// malformed JSON leaves the key unbound
	rec = do(r, http.MethodPost, "/?template=letters/post", `{"name": `)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "unknown variable: post") {
		t.Errorf("malformed payload: status = %d (body %q)", rec.Code, rec.Body.String())
	}
}

func TestRenderCustomKey(t *testing.T) {
	store := templates.NewMemStore()
	store.Store("k", "#data.n")
	_, r := newServer(t, store, Options{JSONKey: "data"})
	if rec := do(r, http.MethodPost, "/?template=k", `{"n": 1}`); rec.Code != http.StatusOK {
		t.Errorf("status = %d (body %q)", rec.Code, rec.Body.String())
	}
}

type brokenStore struct{ err error }

func (s brokenStore) Lookup(context.Context, string) (string, error) { return "", s.err }
func (s brokenStore) List(context.Context) ([]string, error)         { return nil, s.err }

func TestRenderUnreadable(t *testing.T) {
	for _, err := range []error{
		templates.ErrUnreadable,
		fmt.Errorf("redis: %w", context.DeadlineExceeded),
	} {
		_, r := newServer(t, brokenStore{err}, Options{})
		rec := do(r, http.MethodGet, "/?template=x", "")
		if rec.Code != http.StatusNotFound || rec.Body.String() != MsgUnreadable {
			t.Errorf("%v: status = %d (body %q)", err, rec.Code, rec.Body.String())
		}
	}
}

func TestRenderBusy(t *testing.T) {
	h, r := newServer(t, newStore(), Options{MaxConcurrent: 1, AcquireWait: 20 * time.Millisecond})
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	rec := do(r, http.MethodGet, "/?template=hello", "")
	h.sem.Release(1)
	if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != MsgBusy {
		t.Errorf("status = %d (body %q)", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodGet, "/?template=hello", ""); rec.Code != http.StatusOK {
		t.Errorf("after release: status = %d", rec.Code)
	}
}

type slowStore struct{}

func (slowStore) Lookup(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}
func (slowStore) List(context.Context) ([]string, error) { return nil, nil }

func TestRenderTimeout(t *testing.T) {
	_, r := newServer(t, slowStore{}, Options{Timeout: 10 * time.Millisecond})
	rec := do(r, http.MethodGet, "/?template=hello", "")
	if rec.Code != http.StatusGatewayTimeout || rec.Body.String() != MsgTimeout {
		t.Errorf("status = %d (body %q)", rec.Code, rec.Body.String())
	}
}

func TestRenderTooLarge(t *testing.T) {
	_, r := newServer(t, newStore(), Options{})
	body := `{"pad": "` + strings.Repeat("x", maxPayloadBytes) + `"}`
	rec := do(r, http.MethodPost, "/?template=hello", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestThrottled(t *testing.T) {
	store := throttle.NewBucketStore[string](context.Background(), time.Minute, time.Hour)
	store.SetBucketGroup("render", &throttle.BucketConf{Burst: 1, Increment: 1, Period: time.Hour})
	_, r := newServer(t, newStore(), Options{}, &throttle.ClientIPWrapper{Store: store, GroupID: "render"})

	if rec := do(r, http.MethodGet, "/fonts", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", rec.Code)
	}
	rec := do(r, http.MethodGet, "/fonts", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d", rec.Code)
	}
	if ra := rec.Header().Get("Retry-After"); ra == "" {
		t.Error("no Retry-After header")
	}
	// the render routes share the bucket with /fonts
	if rec := do(r, http.MethodPost, "/?template=hello", "{}"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("render: status = %d", rec.Code)
	}
	// health checks are never throttled
	for range 3 {
		if rec := do(r, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
			t.Fatalf("healthz: status = %d", rec.Code)
		}
	}
}

func TestInfoRoutes(t *testing.T) {
	_, r := newServer(t, newStore(), Options{})

	rec := do(r, http.MethodGet, "/fonts", "")
	var fl fontList
	if err := json.Unmarshal(rec.Body.Bytes(), &fl); err != nil {
		t.Fatalf("fonts: %v (%q)", err, rec.Body.String())
	}
	if diff := cmp.Diff([]string{"Go", "Go Mono"}, fl.Families); diff != "" {
		t.Errorf("families (-want +got):\n%s", diff)
	}

	rec = do(r, http.MethodGet, "/healthz", "")
	var hs health
	if err := json.Unmarshal(rec.Body.Bytes(), &hs); err != nil {
		t.Fatalf("healthz: %v (%q)", err, rec.Body.String())
	}
	if hs.Status != "ok" || hs.Backend != "builtin" || hs.Faces != 5 {
		t.Errorf("health = %+v", hs)
	}

	empty := fonts.NewRegistry(fonts.Options{IgnoreSystem: true})
	_, r = newServer(t, newStore(), Options{Registry: empty})
	if rec := do(r, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz without fonts: status = %d", rec.Code)
	}
}
