package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/customeros/mailresponder/api"
	"github.com/customeros/mailresponder/config"
	"github.com/customeros/mailresponder/internal/cron"
	"github.com/customeros/mailresponder/internal/logger"
	"github.com/customeros/mailresponder/internal/tracing"
	"github.com/customeros/mailresponder/services"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return nil, fmt.Errorf("could not initialize jaeger tracer: %w", err)
	}
	opentracing.SetGlobalTracer(tracer)

	svcs := services.InitServices(cfg, appLogger)

	k8s, err := kubernetesClient()
	if err != nil {
		appLogger.Warnf("Kubernetes client unavailable, leader election disabled: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		cronManager:  cron.NewCronManager(cfg, appLogger, k8s, svcs.Cycle),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// kubernetesClient returns nil outside a cluster.
func kubernetesClient() (kubernetes.Interface, error) {
	if os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		return nil, nil
	}
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(restConfig)
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api.RegisterRoutes(ctx, s.router, api.RouteConfig{
		Mailbox: s.services.MailboxService,
		Poller:  s.services.Cycle,
		APIKey:  s.config.AppConfig.APIKey,
	})

	// an unreachable server at startup is retried by the first poll
	if err := s.services.MailboxService.Connect(ctx); err != nil {
		s.log.Errorf("Initial IMAP connection failed: %v", err)
	}

	if err := s.cronManager.Start(s.config.AppConfig.PodName, s.config.AppConfig.Namespace); err != nil {
		return err
	}

	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})
	s.log.Infof("Mail responder running for %s, polling every %s. Press Ctrl+C to exit.",
		s.config.MailConfig.EmailAddress, s.config.PollerConfig.Interval)

	return s.waitForShutdown()
}

// RunOnce performs a single poll cycle and shuts down.
func (s *Server) RunOnce() error {
	defer s.shutdownServices()

	replied, err := s.services.Cycle.Run(context.Background())
	if err != nil {
		return err
	}
	s.log.Infof("Poll finished, replied: %t", replied)
	return nil
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	} else {
		s.log.Info("HTTP server shut down successfully")
	}

	stopDone := make(chan struct{})
	go s.wrapGoroutine("cron_shutdown", func() {
		defer close(stopDone)
		s.cronManager.Stop()
	})

	select {
	case <-stopDone:
		s.log.Info("Poller stopped gracefully")
	case <-time.After(10 * time.Second):
		s.log.Warn("Poller stop timed out, forcing exit")
	}

	s.shutdownServices()
	return nil
}

func (s *Server) shutdownServices() {
	s.services.MailboxService.Close()
	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}
	_ = s.log.Sync()
}
