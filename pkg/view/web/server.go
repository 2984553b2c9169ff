// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package web serves the dashboard's rows to browsers.
package web

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/n0ot/rtcdash/pkg/poller"
	"github.com/n0ot/rtcdash/pkg/view/table"
)

const (
	// pingInterval is how often idle websockets are pinged.
	pingInterval = 30 * time.Second

	// writeTimeout bounds every websocket write.
	writeTimeout = 10 * time.Second

	shutdownTimeout = 5 * time.Second
)

// Server renders a table.Table as a web page, a JSON API, and a websocket feed.
type Server struct {
	Table *table.Table
	Log   *logrus.Logger

	// AllowedOrigins lists origins permitted to use the API and websocket.
	// "*", or an empty list, allows any origin.
	AllowedOrigins []string

	// Source is the stats URL being polled, shown on the page.
	Source string

	upgrader websocket.Upgrader
	page     *template.Template

	statusLock sync.Mutex
	lastPass   poller.Pass
	lastPassAt time.Time
	failures   int

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Server for t.
func New(t *table.Table, log *logrus.Logger, allowedOrigins []string) *Server {
	s := &Server{
		Table:          t,
		Log:            log,
		AllowedOrigins: allowedOrigins,
		page:           template.Must(template.New("page").Parse(pageHTML)),
		done:           make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler builds the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			s.Log.WithFields(logrus.Fields{
				"method":    param.Method,
				"path":      param.Path,
				"status":    param.StatusCode,
				"latency":   param.Latency,
				"client_ip": param.ClientIP,
			}).Debug("HTTP request")
			return ""
		},
	}))
	router.Use(gin.Recovery())

	router.GET("/", s.serveIndex)
	router.GET("/health", s.serveHealth)
	router.GET("/ws", s.serveWebsocket)

	api := router.Group("/api")
	{
		api.GET("/rows", s.serveRows)
		api.GET("/frames/:client", s.serveFrame)
	}

	return cors.New(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         86400,
	}).Handler(router)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.close)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.Log.WithFields(logrus.Fields{
				"error": err,
			}).Warn("Web server did not shut down cleanly")
		}
	}()

	s.Log.WithFields(logrus.Fields{
		"addr":            addr,
		"allowed_origins": s.AllowedOrigins,
	}).Info("Listening for incoming connections")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "Listen")
	}
	return nil
}

// ObservePass records the outcome of a poll, for the health endpoint.
// It is meant to be a poller.Poller's OnPass.
func (s *Server) ObservePass(pass poller.Pass) {
	s.statusLock.Lock()
	defer s.statusLock.Unlock()
	s.lastPass = pass
	s.lastPassAt = time.Now()
	if pass.Err != nil {
		s.failures++
	} else {
		s.failures = 0
	}
}

func (s *Server) close() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	// Same origin is always allowed.
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
