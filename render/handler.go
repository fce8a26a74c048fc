// Package render serves compiled templates over HTTP. It resolves a template
// by name, binds the request payload and maps the outcome to a status code.
package render

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zeptools/gw-typst/compiler"
	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/requests"
	"github.com/zeptools/gw-typst/responses"
	"github.com/zeptools/gw-typst/routing"
	"github.com/zeptools/gw-typst/sec"
	"github.com/zeptools/gw-typst/templates"
	"github.com/zeptools/gw-typst/world"
)

const (
	DefaultJSONKey     = "post"
	DefaultTimeout     = 30 * time.Second
	DefaultAcquireWait = 5 * time.Second
	emptyPayload       = "{}"
	maxPayloadBytes    = 8 << 20
)

// Response texts
const (
	MsgNoTemplate = "Must specify a template."
	MsgTraversal  = "Template name cannot traverse the file tree."
	MsgNotFound   = "Could not locate template."
	MsgUnreadable = "Could not read template."
	MsgBadPayload = "Could not read request body."
	MsgTooLarge   = "Request body too large."
	MsgBusy       = "Too many compilations in progress."
	MsgTimeout    = "Template compilation timed out."
	MsgCanceled   = "Request canceled."
)

const (
	headerTemplate     = "X-Typst-Template"
	pdfFileSuffix      = ".pdf"
	statusClientClosed = 499 // nginx convention, never written to the client
)

type Options struct {
	JSONKey       string         // payload binding name, DefaultJSONKey if empty
	Timeout       time.Duration  // wall clock per request, DefaultTimeout if zero
	MaxConcurrent int64          // compile slots, runtime.NumCPU() if zero
	AcquireWait   time.Duration  // how long to queue for a slot, DefaultAcquireWait if zero
	Backend       world.Compiler // builtin if nil
	Registry      *fonts.Registry
	FilesRoot     string
	Clock         world.Clock
}

type Handler struct {
	store templates.Store
	opts  Options
	sem   *semaphore.Weighted
}

func NewHandler(store templates.Store, opts Options) *Handler {
	if opts.JSONKey == "" {
		opts.JSONKey = DefaultJSONKey
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = int64(runtime.NumCPU())
	}
	if opts.AcquireWait <= 0 {
		opts.AcquireWait = DefaultAcquireWait
	}
	if opts.Registry == nil {
		opts.Registry = fonts.NewRegistry(fonts.Options{Embedded: true})
	}
	return &Handler{
		store: store,
		opts:  opts,
		sem:   semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

// Register mounts the render routes. wrappers guard everything but /healthz.
func (h *Handler) Register(r *routing.BaseRouter, wrappers ...routing.HandlerWrapper) {
	r.Group("/", func(g *routing.RouteGroup) {
		g.HandleFunc("GET {$}", h.ServeRender)
		g.HandleFunc("POST {$}", h.ServeRender)
		g.HandleFunc("GET fonts", h.ServeFonts)
	}, wrappers...)
	r.HandleFunc("GET /healthz", h.ServeHealth, routing.HandlerWrapperFunc(routing.RecoverWrapper))
}

// ServeRender answers GET /?template=<name> and POST /?template=<name>.
func (h *Handler) ServeRender(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.URL.Query().Get("template")
	res := h.render(w, r, name)
	log.Printf("[INFO][RENDER] %s %s template=%q status=%d bytes=%d duration=%v digest=%s",
		requests.GetClientIP(r), r.Method, name, res.status, res.bytes,
		time.Since(start).Round(time.Millisecond), res.digest)
}

type result struct {
	status int
	bytes  int
	digest string
}

func fail(w http.ResponseWriter, status int, msg string) result {
	if status != statusClientClosed {
		responses.WriteText(w, status, msg)
	}
	return result{status: status, bytes: len(msg)}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string) result {
	if err := templates.ValidateName(name); err != nil {
		if errors.Is(err, templates.ErrNoName) {
			return fail(w, http.StatusBadRequest, MsgNoTemplate)
		}
		return fail(w, http.StatusNotAcceptable, MsgTraversal)
	}

	payload, err := readPayload(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fail(w, http.StatusRequestEntityTooLarge, MsgTooLarge)
		}
		return fail(w, http.StatusBadRequest, MsgBadPayload)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Timeout)
	defer cancel()

	body, err := h.store.Lookup(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, templates.ErrNotFound):
			return fail(w, http.StatusNotFound, MsgNotFound)
		case errors.Is(err, templates.ErrTraversal):
			return fail(w, http.StatusNotAcceptable, MsgTraversal)
		case ctx.Err() != nil:
			return h.interrupted(w, ctx)
		}
		log.Printf("[ERROR][RENDER] template %q: %v", name, err)
		return fail(w, http.StatusNotFound, MsgUnreadable)
	}

	acquireCtx, acquireCancel := context.WithTimeout(ctx, h.opts.AcquireWait)
	err = h.sem.Acquire(acquireCtx, 1)
	acquireCancel()
	if err != nil {
		if ctx.Err() != nil {
			return h.interrupted(w, ctx)
		}
		log.Printf("[WARN][RENDER] no compile slot for %q after %v", name, h.opts.AcquireWait)
		return fail(w, http.StatusServiceUnavailable, MsgBusy)
	}
	defer h.sem.Release(1)

	t := compiler.New(&body,
		compiler.WithBackend(h.opts.Backend),
		compiler.WithRegistry(h.opts.Registry),
		compiler.WithFilesRoot(h.opts.FilesRoot),
		compiler.WithClock(h.opts.Clock),
	)
	t.JSON(h.opts.JSONKey, payload)
	pdf, err := t.Compile(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return h.interrupted(w, ctx)
		}
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return fail(w, http.StatusInternalServerError, ce.Message)
		}
		log.Printf("[ERROR][RENDER] template %q: %v", name, err)
		return fail(w, http.StatusInternalServerError, err.Error())
	}

	digest := sec.Digest(pdf)
	if match := r.Header.Get("If-None-Match"); match != "" && match == strconv.Quote(digest) {
		w.Header().Set("ETag", match)
		w.WriteHeader(http.StatusNotModified)
		return result{status: http.StatusNotModified, digest: digest[:16]}
	}
	w.Header().Set(headerTemplate, name)
	responses.WritePDFBytesWithFilename(w, path.Base(name)+pdfFileSuffix, digest, pdf)
	return result{status: http.StatusOK, bytes: len(pdf), digest: digest[:16]}
}

// interrupted reports a request whose context ended: the wall clock ran out
// or the client went away.
func (h *Handler) interrupted(w http.ResponseWriter, ctx context.Context) result {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fail(w, http.StatusGatewayTimeout, MsgTimeout)
	}
	return fail(w, statusClientClosed, MsgCanceled)
}

// readPayload returns the request body, or the empty object when the request
// carries none.
func readPayload(w http.ResponseWriter, r *http.Request) (string, error) {
	if !requests.HasBody(r) || r.Body == nil {
		return emptyPayload, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return emptyPayload, nil
	}
	return string(data), nil
}
