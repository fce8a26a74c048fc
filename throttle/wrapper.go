package throttle

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/zeptools/gw-typst/requests"
	"github.com/zeptools/gw-typst/responses"
	"github.com/zeptools/gw-typst/routing"
)

// Ensure ClientIPWrapper implements routing.HandlerWrapper
var _ routing.HandlerWrapper = (*ClientIPWrapper)(nil)

// ClientIPWrapper throttles requests per client IP with 429 responses.
type ClientIPWrapper struct {
	Store   *BucketStore[string]
	GroupID string
	Now     func() time.Time // nil means time.Now
}

func (t *ClientIPWrapper) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now
		if t.Now != nil {
			now = t.Now
		}
		ip := requests.GetClientIP(r)
		ok, wait := t.Store.Allow(t.GroupID, ip, now())
		if !ok {
			log.Printf("[WARN][Throttle] %s throttled in %q", ip, t.GroupID)
			if wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			responses.WriteText(w, http.StatusTooManyRequests, "Too many requests.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
