// Package server exposes a running basestation to collaborators over HTTP:
// status, identity selection, image and series snapshots, the notice feed
// and a websocket stream of reports.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/grassroots/internal/basestation"
	"github.com/danmuck/grassroots/internal/imaging"
	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

// Station is the read and select surface of a basestation.
type Station interface {
	Status() basestation.Status
	Identities() basestation.Identities
	SelectCamera(id string) error
	SelectSensor(key string) error
	Image() (imaging.Buffer, bool)
	Dims() imaging.Dims
	Series() basestation.SeriesSnapshot
	Notices() []basestation.Notice
	Subscribe(buf int) (<-chan basestation.Event, func())
}

var _ Station = (*basestation.Service)(nil)

type Server struct {
	name     string
	addr     string
	origins  []string
	station  Station
	router   *gin.Engine
	upgrader websocket.Upgrader

	closeOnce sync.Once
	closing   chan struct{}
}

func New(name, addr string, corsOrigins []string, station Station) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	s := &Server{
		name:    name,
		addr:    addr,
		origins: normalizeOrigins(corsOrigins),
		station: station,
		router:  r,
		closing: make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	r.Use(gin.Recovery())
	r.Use(s.accessLog(), s.requestMetrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins: s.origins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("server.Server.Serve listening name=%q addr=%s", s.name, s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warnf("server.Server.Serve shutdown err=%v", err)
		return err
	}
	logging.Infof("server.Server.Serve stopped name=%q", s.name)
	return nil
}

// close ends open event streams; http.Server.Shutdown does not track
// hijacked connections.
func (s *Server) close() {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
