// Package server exposes sessions, chat turns and collaborations over HTTP,
// plus a server-sent event feed of session changes.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/crewdesk/internal/conductor"
	"github.com/zulandar/crewdesk/internal/logging"
	"github.com/zulandar/crewdesk/internal/session"
	"github.com/zulandar/crewdesk/internal/webhook"
)

// DefaultPollInterval is how often the event feed checks for session changes.
const DefaultPollInterval = 500 * time.Millisecond

// Deps are the services the handlers call.
type Deps struct {
	Sessions  *session.Manager
	Conductor *conductor.Conductor
	Webhook   *webhook.Client // optional; enables the webhook proxy and test routes
	Poll      time.Duration
}

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Deps
	Port int
	Out  io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts.Deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "crewdesk API running at http://localhost:%d\n", opts.Port)
	}
	log := logging.For("server")
	log.Info().Int("port", opts.Port).Msg("listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("server: sessions is required")
	}
	if deps.Conductor == nil {
		return nil, fmt.Errorf("server: conductor is required")
	}
	if deps.Poll <= 0 {
		deps.Poll = DefaultPollInterval
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	registerRoutes(router, &handlers{deps: deps})
	return router, nil
}

// requestLogger logs each request through zerolog.
func requestLogger() gin.HandlerFunc {
	log := logging.For("server")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
