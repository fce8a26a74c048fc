package throttle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBucketRefill(t *testing.T) {
	s := NewBucketStore[string](context.Background(), time.Minute, time.Hour)
	s.SetBucketGroup("g", &BucketConf{Burst: 2, Increment: 1, Period: time.Second})
	t0 := time.Unix(1000, 0)

	steps := []struct {
		at   time.Duration
		ok   bool
		wait time.Duration
	}{
		{0, true, 0},
		{0, true, 0},
		{300 * time.Millisecond, false, 700 * time.Millisecond},
		{time.Second, true, 0},
		{time.Second, false, time.Second},
		{5 * time.Second, true, 0}, // refill is capped at the burst
		{5 * time.Second, true, 0},
		{5 * time.Second, false, time.Second},
	}
	for i, st := range steps {
		ok, wait := s.Allow("g", "10.0.0.1", t0.Add(st.at))
		if ok != st.ok || wait != st.wait {
			t.Errorf("step %d: Allow = %v, %v; want %v, %v", i, ok, wait, st.ok, st.wait)
		}
	}
	if ok, _ := s.Allow("g", "10.0.0.2", t0); !ok {
		t.Error("buckets are not per key")
	}
	if ok, _ := s.Allow("missing", "10.0.0.1", t0); ok {
		t.Error("unknown group allowed")
	}
}

func TestCleanup(t *testing.T) {
	s := NewBucketStore[string](context.Background(), time.Minute, time.Hour)
	s.SetBucketGroup("g", &BucketConf{Burst: 1, Increment: 1, Period: time.Second})
	t0 := time.Unix(1000, 0)
	s.Allow("g", "old", t0)
	s.Allow("g", "new", t0.Add(90*time.Minute))

	s.Cleanup(t0.Add(2 * time.Hour))
	g, _ := s.GetBucketGroup("g")
	if _, ok := g.GetBucket("old"); ok {
		t.Error("idle bucket kept")
	}
	if _, ok := g.GetBucket("new"); !ok {
		t.Error("recent bucket removed")
	}
	if g.Len() != 1 {
		t.Errorf("Len = %d", g.Len())
	}
}

func TestServiceLifecycle(t *testing.T) {
	s := NewBucketStore[string](context.Background(), 0, time.Hour)
	if err := s.Start(); err == nil {
		t.Fatal("started with a zero cleanup cycle")
	}
	s = NewBucketStore[string](context.Background(), time.Millisecond, time.Hour)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start succeeded")
	}
	s.Stop()
	select {
	case err := <-s.Done():
		if err != nil {
			t.Errorf("Done: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestClientIPWrapper(t *testing.T) {
	s := NewBucketStore[string](context.Background(), time.Minute, time.Hour)
	s.SetBucketGroup("render", &BucketConf{Burst: 1, Increment: 1, Period: 30 * time.Second})
	now := time.Unix(1000, 0)
	h := (&ClientIPWrapper{Store: s, GroupID: "render", Now: func() time.Time { return now }}).Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.1.1.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("192.0.2.1"); rec.Code != http.StatusNoContent {
		t.Fatalf("first: %d", rec.Code)
	}
	rec := send("192.0.2.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second: %d", rec.Code)
	}
	if ra := rec.Header().Get("Retry-After"); ra != "30" {
		t.Errorf("Retry-After = %q", ra)
	}
	if rec := send("192.0.2.2"); rec.Code != http.StatusNoContent {
		t.Errorf("other client: %d", rec.Code)
	}
}
