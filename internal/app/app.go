package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"lobby-crowd/server/internal/config"
	"lobby-crowd/server/internal/crowd"
	servernet "lobby-crowd/server/internal/net"
	"lobby-crowd/server/internal/net/ws"
	"lobby-crowd/server/internal/physics"
	"lobby-crowd/server/internal/routes"
	"lobby-crowd/server/internal/sim"
	"lobby-crowd/server/internal/telemetry"
	"lobby-crowd/server/logging"
	loggingSinks "lobby-crowd/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

// broadcastHz caps observer updates independently of the tick rate.
const broadcastHz = 15

// Run serves the lobby scene until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, logger telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	router, closers, err := newRouter(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
		for _, c := range closers {
			c.Close()
		}
	}()

	metrics := &logging.Metrics{}
	tm := telemetry.WrapMetrics(metrics)

	nav := NewNavigation(cfg, router, tm)
	world := physics.NewWorld(cfg.Physics)

	registry := routes.NewRegistry()
	if _, err := (routes.File{Routes: cfg.Routes.Default}).Apply(registry); err != nil {
		return fmt.Errorf("default routes: %w", err)
	}
	if cfg.Routes.File != "" {
		count, err := routes.LoadFile(cfg.Routes.File, registry)
		if err != nil {
			return fmt.Errorf("load routes: %w", err)
		}
		logger.Printf("loaded %d patrol routes from %s", count, cfg.Routes.File)
	}

	manager := crowd.NewManager(cfg.Crowd, crowd.Deps{
		Nav:         nav.Backend(nav.Kind),
		Bodies:      world,
		Routes:      registry,
		AgentConfig: cfg.Agent,
		Seed:        cfg.Seed,
		Publisher:   router,
		Metrics:     tm,
	})
	manager.SpawnDefault()

	scene := sim.NewScene(sim.SceneDeps{
		Grid:    nav.Grid,
		Mesh:    nav.Mesh,
		Backend: nav.Kind,
		World:   world,
		Crowd:   manager,
		Routes:  registry,
	})

	var hub *ws.Hub
	loop := sim.NewLoop(scene, sim.LoopConfig{
		TickRate:        cfg.Server.TickRate,
		CatchupMaxTicks: cfg.Server.CatchupMaxTicks,
		CommandCapacity: cfg.Server.CommandCapacity,
	}, sim.LoopDeps{
		Logger:    logger,
		Metrics:   tm,
		Publisher: router,
	}, sim.LoopHooks{
		AfterStep: func(result sim.StepResult) { hub.Observe(result) },
	})
	hub = ws.NewHub(loop, ws.HubConfig{
		Logger:         logger,
		Metrics:        tm,
		BroadcastEvery: uint64(max(1, cfg.Server.TickRate/broadcastHz)),
	})
	defer hub.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(runCtx)
	}()

	// The mesh builds off the loop; the crowd keeps retrying until it is ready.
	go func() {
		if err := nav.InitMesh(runCtx, cfg); err != nil {
			logger.Printf("navmesh init failed: %v", err)
		}
	}()

	handler := servernet.NewHTTPHandler(loop, hub, servernet.HTTPHandlerConfig{
		Logger:   logger,
		TickRate: cfg.Server.TickRate,
		Stats:    router.Stats,
		Metrics:  metrics,
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("server listening on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		cancel()
		<-loopDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	cancel()
	<-loopDone
	return nil
}

func newRouter(cfg config.Config, logger telemetry.Logger) (*logging.Router, []io.Closer, error) {
	logConfig := cfg.LoggingRouter()
	var sinks []logging.NamedSink
	var closers []io.Closer
	for _, name := range logConfig.EnabledSinks {
		switch name {
		case "console":
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)})
		case "json":
			var w io.Writer = os.Stdout
			if path := logConfig.JSON.FilePath; path != "" {
				file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return nil, nil, fmt.Errorf("open json log: %w", err)
				}
				closers = append(closers, file)
				w = file
			}
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(w, logConfig.JSON.FlushInterval)})
		default:
			logger.Printf("unknown log sink %q ignored", name)
		}
	}
	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, sinks)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to construct logging router: %w", err)
	}
	return router, closers, nil
}
