package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mason50x/sentinel/internal/config"
	"github.com/mason50x/sentinel/internal/middleware"
	"github.com/mason50x/sentinel/internal/tracker"
	"github.com/mason50x/sentinel/internal/watchdog"
)

// statusRefreshInterval is how often connected WebSocket clients receive a
// status frame even without a transition.
const statusRefreshInterval = 30 * time.Second

// Server is the HTTP boundary around the activity tracker. It owns no
// tracker state; every handler translates between the wire and the
// tracker's operations.
type Server struct {
	config   *config.Config
	tracker  *tracker.Tracker
	watchdog *watchdog.Watchdog
	hub      *hub
	log      *logrus.Entry

	startTime time.Time
}

// New creates a server around the given tracker. The watchdog is optional;
// when present, its transitions are pushed to WebSocket subscribers.
func New(cfg *config.Config, tr *tracker.Tracker, wd *watchdog.Watchdog, log *logrus.Entry) *Server {
	s := &Server{
		config:    cfg,
		tracker:   tr,
		watchdog:  wd,
		hub:       newHub(log),
		log:       log,
		startTime: time.Now(),
	}

	// Push a fresh status frame on every submitted event and on every
	// timeout-driven transition the watchdog observes.
	tr.Subscribe(s.hub.broadcast)
	if wd != nil {
		wd.AddListener(s.hub.broadcast)
	}

	return s
}

// Handler builds the route table. Exposed separately from Start so tests
// can drive the full middleware stack through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/hook", s.handleHook)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/simulate", s.handleSimulate)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Everything else is a JSON 404.
	mux.HandleFunc("/", s.handleNotFound)

	cors := middleware.NewCORSMiddleware()
	requestLog := middleware.NewRequestLogMiddleware(s.log)

	return cors.Wrap(requestLog.Wrap(mux))
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.Handler(),
	}

	if s.watchdog != nil && s.config.Watchdog.Enabled {
		if err := s.watchdog.Start(); err != nil {
			return fmt.Errorf("failed to start watchdog: %w", err)
		}
	}

	// Keep idle WebSocket subscribers current even without transitions.
	go s.refreshLoop(ctx)

	go func() {
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	s.log.WithField("port", s.config.Port).Info("sentinel listening")

	<-ctx.Done()

	s.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Error("server shutdown error")
	}

	if s.watchdog != nil {
		s.watchdog.Stop()
	}

	s.hub.closeAll()

	return nil
}

func (s *Server) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(statusRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.broadcast(s.tracker.Snapshot())
		}
	}
}
