// Package api is the scheduler's admin HTTP surface: process
// status, per-organisation queue introspection, and manual queue push/pop
// for operators. It holds only borrowed references into the running
// schedulers, never owning their lifecycle, so a handler can never
// accidentally keep a scheduler pair alive past Supervisor.Stop.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SchedulerView is the subset of internal/app.Supervisor the admin surface
// needs: listing organisations and reaching into one pair's queues without
// any ability to start or stop them.
type SchedulerView interface {
	Organisations() []string
	QueueSnapshot(orgID, queueType string) (QueueSnapshot, bool)
	Push(orgID, queueType string, priority int, payload []byte) error
	Pop(orgID, queueType string) (any, bool, error)
}

// QueueSnapshot is what a SchedulerView reports for one queue. GET
// /queues/{id} does not serialise it as-is: handleGetQueue renders it as
// {id, size, maxsize, pq, task_statuses}.
type QueueSnapshot struct {
	Organisation string `json:"organisation"`
	QueueType    string `json:"queue_type"`
	Length       int    `json:"length"`
	Maxsize      int    `json:"maxsize"`
	Items        []any  `json:"items"`
	// Statuses maps task id to its in-memory lifecycle status (pending,
	// queued, dispatched, completed, failed), for admin introspection. It
	// covers tasks the scheduler has seen this run, not just those
	// currently enqueued.
	Statuses map[string]string `json:"task_statuses,omitempty"`
}

// Server wraps a gin.Engine configured with the admin API's routes, plus
// a /metrics endpoint for the Prometheus ambient stack.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	view    SchedulerView
	version string
}

// New builds a Server bound to addr, serving view's data.
func New(addr string, view SchedulerView, version string) *Server {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{router: router, view: view, version: version}
	s.routes()
	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

func (s *Server) routes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/queues", s.handleListQueues)
	s.router.GET("/queues/:id", s.handleGetQueue)
	s.router.GET("/queues/:id/pop", s.handlePop)
	s.router.POST("/queues/:id/push", s.handlePush)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run starts serving until ctx is cancelled, then shuts the HTTP server down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
