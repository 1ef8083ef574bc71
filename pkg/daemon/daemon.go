package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tpbal/pkg/balancer"
	"github.com/charlie0129/tpbal/pkg/config"
	"github.com/charlie0129/tpbal/pkg/events"
	"github.com/charlie0129/tpbal/pkg/metrics"
	"github.com/charlie0129/tpbal/pkg/smapi"
)

// Options configures Run.
type Options struct {
	Config         config.Config
	UnixSocketPath string
	AllowNonRoot   bool
	// DryRun reads smapi as usual but never writes to it.
	DryRun bool
}

// Server exposes a balancer engine over HTTP.
type Server struct {
	engine   *balancer.Engine
	hub      *events.Hub
	registry *prometheus.Registry
}

// NewServer wires an engine to an HTTP API. The registry must be the one
// the engine's metrics recorder was registered on.
func NewServer(engine *balancer.Engine, hub *events.Hub, registry *prometheus.Registry) *Server {
	return &Server{
		engine:   engine,
		hub:      hub,
		registry: registry,
	}
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", s.getConfig)
	router.GET("/snapshot", s.getSnapshot)
	router.GET("/decision", s.getDecision)
	router.GET("/battery-info", s.getBatteryInfo)
	router.GET("/version", s.getVersion)
	router.GET("/events", s.streamEvents)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	return router
}

// Run starts the balancer loop and the API, and blocks until SIGINT or
// SIGTERM. Forced discharge is stopped before it returns.
func Run(opts Options) error {
	conf := opts.Config
	if err := conf.Validate(); err != nil {
		return err
	}
	logrus.WithFields(conf.LogrusFields()).Info("config loaded")

	var store smapi.Store = smapi.New(conf.SMAPIRoot)
	if opts.DryRun {
		logrus.Warn("dry run enabled, force_discharge will not be written")
		store = smapi.DryRun{Store: store}
	}

	registry := prometheus.NewRegistry()
	rec, err := metrics.NewProm(registry)
	if err != nil {
		return err
	}
	hub := events.NewHub()

	engine := balancer.New(conf, store,
		balancer.WithRecorder(rec),
		balancer.WithEventHub(hub),
		balancer.WithDryRun(opts.DryRun),
	)
	s := NewServer(engine, hub, registry)

	srv := &http.Server{
		Handler: s.setupRoutes(),
	}

	// A socket left behind by a crashed daemon would make Listen fail.
	if err := os.Remove(opts.UnixSocketPath); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("failed to remove stale socket %s: %v", opts.UnixSocketPath, err)
	}

	l, err := net.Listen("unix", opts.UnixSocketPath)
	if err != nil {
		return err
	}

	if opts.AllowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", opts.UnixSocketPath)
		if err := os.Chmod(opts.UnixSocketPath, 0777); err != nil {
			_ = l.Close()
			return err
		}
	}

	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("http server failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := engine.Run(ctx); err != nil {
			logrus.Errorf("balancer loop exited: %v", err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	// The loop releases both batteries on its way out.
	cancel()
	<-loopDone

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}

	logrus.Info("exiting")
	return nil
}
