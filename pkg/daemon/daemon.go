package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/config"
	"github.com/devicedata/datacollector/pkg/events"
)

// Server serves the local control API for one running collector.
type Server struct {
	// mu guards pipe, which is replaced on reload.
	mu   sync.RWMutex
	pipe *pipeline

	conf config.Config
	hub  *events.EventHub
}

func newServer(conf config.Config, hub *events.EventHub, pipe *pipeline) *Server {
	return &Server{conf: conf, hub: hub, pipe: pipe}
}

func (s *Server) current() *pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipe
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/state", s.getState)
	router.GET("/reading", s.getReading)
	router.PUT("/monitoring", s.setMonitoring)
	router.POST("/collect", s.collect)
	router.GET("/history", s.getHistory)
	router.GET("/history/stats", s.getHistoryStats)
	router.GET("/config", s.getConfig)
	router.PUT("/config", s.setConfig)
	router.GET("/version", getVersion)
	router.GET("/events", s.streamEvents)

	return router
}

// reload rebuilds the pipeline from the current config. Counters continue
// from the previous collector and monitoring resumes if it was running.
//
// The old pipeline is closed before the new one is published, so the
// process-wide grant is never released from under the new collector.
// Handlers block on mu until the swap is done.
func (s *Server) reload() error {
	next, err := newPipeline(s.conf, s.hub)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.pipe
	wasRunning := prev.collector.Running()
	prev.close()

	if err := next.collector.Seed(prev.collector.Carryover()); err != nil {
		next.close()
		return err
	}
	s.pipe = next

	if wasRunning {
		return next.collector.Start()
	}
	return nil
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run(configPath string, unixSocketPath string, allowNonRoot bool, envFile string) error {
	file, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	if err := file.Validate(); err != nil {
		logrus.Fatalf("invalid config %s: %v", configPath, err)
	}
	conf, err := config.ApplyEnv(file, envFile)
	if err != nil {
		logrus.Fatalf("failed to apply environment overrides: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	hub := events.NewEventHub()

	pipe, err := newPipeline(conf, hub)
	if err != nil {
		logrus.Fatalf("failed to set up collector: %v", err)
	}

	s := newServer(conf, hub, pipe)
	router := s.setupRoutes()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := file.Load(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if err := file.Validate(); err != nil {
				logrus.Errorf("reloaded config is invalid, keeping the running collector: %v", err)
				continue
			}
			if err := s.reload(); err != nil {
				logrus.Errorf("failed to apply reloaded config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	removeStaleSocket(unixSocketPath)

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	if conf.AutoStart() {
		if err := pipe.collector.Start(); err != nil {
			logrus.Errorf("failed to start monitoring: %v", err)
		}
	}

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	// SSE streams only end when their subscription closes.
	hub.Close()

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping collector")
	s.current().close()

	logrus.Info("exiting")
	return nil
}

// removeStaleSocket deletes a socket file left behind by a crashed daemon.
func removeStaleSocket(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		conn.Close()
		return
	}
	logrus.Warnf("removing stale socket %s", path)
	if err := os.Remove(path); err != nil {
		logrus.Errorf("failed to remove stale socket %s: %v", path, err)
	}
}
