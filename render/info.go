package render

import (
	"net/http"
	"time"

	"github.com/zeptools/gw-typst/responses"
)

type health struct {
	Status        string `json:"status"`
	Backend       string `json:"backend"`
	Faces         int    `json:"faces"`
	FontsLoadedAt string `json:"fonts_loaded_at"`
	InFlightLimit int64  `json:"in_flight_limit"`
}

// ServeHealth answers GET /healthz. A catalog without any face cannot
// render text, so it reports unavailable.
func (h *Handler) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	c := h.opts.Registry.Catalog()
	if c.Len() == 0 {
		responses.WriteSimpleErrorJSON(w, http.StatusServiceUnavailable, "no fonts available")
		return
	}
	responses.EncodeWriteJSON(w, http.StatusOK, health{
		Status:        "ok",
		Backend:       h.backendName(),
		Faces:         c.Len(),
		FontsLoadedAt: h.opts.Registry.LoadedAt().UTC().Format(time.RFC3339),
		InFlightLimit: h.opts.MaxConcurrent,
	})
}

type fontList struct {
	Families []string `json:"families"`
}

// ServeFonts answers GET /fonts with the family names of the shared catalog.
func (h *Handler) ServeFonts(w http.ResponseWriter, _ *http.Request) {
	families := h.opts.Registry.Catalog().Book.Families()
	if families == nil {
		families = []string{}
	}
	responses.EncodeWriteJSON(w, http.StatusOK, fontList{Families: families})
}

func (h *Handler) backendName() string {
	if h.opts.Backend == nil {
		return "builtin"
	}
	return h.opts.Backend.Name()
}
