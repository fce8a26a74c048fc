package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/zeptools/gw-typst/svc"
)

// Ensure Service implements svc.Service
var _ svc.Service = (*Service)(nil)

const shutdownTimeout = 15 * time.Second

type Service struct {
	Ctx      context.Context    // Service Context
	cancel   context.CancelFunc // Service Context CancelFunc
	state    svc.State          // internal service state
	done     chan error         // Shutdown Error Channel
	Server   *http.Server
	listener net.Listener
}

func NewService(parentCtx context.Context, addr string, router http.Handler) *Service {
	svcCtx, svcCancel := context.WithCancel(parentCtx)
	return &Service{
		Ctx:    svcCtx,
		cancel: svcCancel,
		state:  svc.StateREADY,
		done:   make(chan error, 1),
		Server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return svcCtx },
		},
	}
}

func (s *Service) Name() string {
	return "WebService"
}

// Start binds the listen address so that bind errors surface immediately,
// then serves in the background.
func (s *Service) Start() error {
	if s.state != svc.StateREADY {
		return fmt.Errorf("cannot start. state %s", s.state)
	}
	ln, err := net.Listen("tcp", s.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen(%q) failed: %w", s.Server.Addr, err)
	}
	s.listener = ln
	s.state = svc.StateRUNNING
	go s.run()
	return nil
}

func (s *Service) Stop() {
	s.cancel()
	s.state = svc.StateSTOPPED
	log.Println("[INFO][WEB] service stopped")
}

func (s *Service) Done() <-chan error {
	return s.done
}

// Addr is the bound address, useful when listening on port 0.
func (s *Service) Addr() string {
	if s.listener == nil {
		return s.Server.Addr
	}
	return s.listener.Addr().String()
}

func (s *Service) run() {
	served := make(chan error, 1)
	go func() {
		log.Printf("[INFO][WEB] listening on %s ...", s.listener.Addr())
		served <- s.Server.Serve(s.listener)
	}()

	select {
	case err := <-served:
		// server died on its own
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	case <-s.Ctx.Done():
		log.Println("[INFO][WEB] shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := s.Server.Shutdown(ctx)
		if err != nil {
			log.Printf("[ERROR][WEB] shutdown: %v", err)
		}
		<-served
		s.done <- err
	}
}
