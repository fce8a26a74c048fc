package routing

import (
	"fmt"
	"net/http"
	"strings"
)

// RouteGroup registers routes under a common prefix and wrapper chain.
type RouteGroup struct {
	Router          // [Embedded Interface]
	Prefix          string
	HandlerWrappers []HandlerWrapper // applied outside the per-route wrappers
}

// Ensure RouteGroup implements Router
var _ Router = (*RouteGroup)(nil)

// Handle registers "<method> <subpath>" or "<subpath>" below the group prefix.
// Group wrappers run first, then the route's own wrappers, then handler.
func (g *RouteGroup) Handle(subpattern string, handler http.Handler, handlerWrappers ...HandlerWrapper) {
	fullPattern := g.Prefix + subpattern
	if method, subpath, ok := strings.Cut(subpattern, " "); ok {
		fullPattern = method + " " + g.Prefix + subpath
	}
	if strings.Contains(fullPattern, "//") {
		panic(fmt.Sprintf("routing: bad pattern %q", fullPattern))
	}
	wrapped := handler
	for i := len(handlerWrappers) - 1; i >= 0; i-- {
		wrapped = handlerWrappers[i].Wrap(wrapped)
	}
	for i := len(g.HandlerWrappers) - 1; i >= 0; i-- {
		wrapped = g.HandlerWrappers[i].Wrap(wrapped)
	}
	g.Router.Handle(fullPattern, wrapped)
}

func (g *RouteGroup) HandleFunc(subpattern string, handleFunc func(http.ResponseWriter, *http.Request), handlerWrappers ...HandlerWrapper) {
	g.Handle(subpattern, http.HandlerFunc(handleFunc), handlerWrappers...)
}
