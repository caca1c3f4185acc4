// Command firecommand runs the wildfire simulation session controller and
// serves the incident dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberwatch/firecommand/internal/archive"
	"github.com/emberwatch/firecommand/internal/command"
	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/internal/dispatcher"
	"github.com/emberwatch/firecommand/internal/engine"
	"github.com/emberwatch/firecommand/internal/gis"
	"github.com/emberwatch/firecommand/internal/influx"
	"github.com/emberwatch/firecommand/internal/logging"
	"github.com/emberwatch/firecommand/internal/monitor"
	intOtel "github.com/emberwatch/firecommand/internal/otel"
	"github.com/emberwatch/firecommand/internal/server"
	"github.com/emberwatch/firecommand/internal/session"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"
)

// observer lane sizes
const (
	hubLane     = 256
	archiveLane = 64
	influxLane  = 64
)

var configDir = flag.String("config", ".", "directory containing "+config.FileName)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "firecommand: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	startedAt := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", *configDir)
	}
	level := config.GetString("logLevel")

	// log file
	var logOut io.Writer
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	} else {
		logPath := logging.LogFilePath(logsDir, logging.ServiceName, startedAt)
		logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			logger.Error("Failed to create/open log file!", "error", err, "path", logPath)
		} else {
			defer logFile.Close()
			logOut = logFile
			logger.Info("Begin logging in logs directory", "path", logPath)
		}
	}

	// OTel
	var otelProvider *intOtel.Provider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		p, err := intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      logOut,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			otelProvider = p
			logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := slogManager.Flush(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "log flush: %v\n", err)
				}
				if err := otelProvider.Shutdown(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "otel shutdown: %v\n", err)
				}
			}()
		}
	}

	// Graylog sinks for slog and zerolog
	var (
		setupOpts []logging.SetupOption
		zlExtra   []io.Writer
	)
	if gl := config.GetGraylogConfig(); gl.Enabled {
		h, closer, err := logging.NewGELFHandler(gl.Address, level)
		if err != nil {
			logger.Error("Failed to connect to Graylog", "error", err, "address", gl.Address)
		} else {
			defer closer.Close()
			setupOpts = append(setupOpts, logging.WithSink("graylog", h))
			if w, err := logging.NewGELFWriter(gl.Address); err == nil {
				defer w.Close()
				zlExtra = append(zlExtra, w)
			}
		}
	}

	// set once the session exists
	current := &logging.SessionRef{}
	setupOpts = append(setupOpts, logging.WithSession(current))

	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
	}
	slogManager.Setup(logOut, level, otelLogProvider, setupOpts...)
	logger = slogManager.Logger()
	logger.Info("Starting firecommand", "version", Version, "buildDate", BuildDate)

	consoleOut := logOut
	if consoleOut == nil {
		consoleOut = os.Stdout
	}
	zl := logging.NewZerolog(consoleOut, level, logging.ServiceName, zlExtra...)
	zl = logging.WithSessionHook(zl, current)
	dispatchLog := logging.NewDispatcherLogger(zl.With().Str("component", "dispatcher").Logger())

	// observers run on their own lanes so exports never stall the session inbox
	observerLanes, err := dispatcher.New(dispatchLog, 0)
	if err != nil {
		return fmt.Errorf("create observer dispatcher: %w", err)
	}
	defer observerLanes.Close()

	serverCfg := config.GetServerConfig()
	hub := server.NewHub(serverCfg.AllowOrigins, logger)
	observers := []session.Observer{session.Buffered(observerLanes, "hub", hubLane, hub)}

	var runs server.RunStore
	if archiveCfg := config.GetArchiveConfig(); archiveCfg.Enabled {
		a, err := archive.New(archiveCfg, zl)
		if err != nil {
			logger.Error("Failed to open run archive", "error", err)
		} else {
			defer a.Close()
			runs = a
			observers = append(observers, session.Buffered(observerLanes, "archive", archiveLane, a))
		}
	}

	var statusWriter monitor.StatusWriter
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		m := influx.NewManager(influxCfg, zl)
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := m.Connect(connectCtx)
		cancel()
		if err != nil {
			logger.Error("Failed to set up InfluxDB export", "error", err)
		} else {
			defer m.Close()
			statusWriter = m
			observers = append(observers, session.Buffered(observerLanes, "influx", influxLane, m))
		}
	}

	var parser command.Parser
	if parserCfg := config.GetParserConfig(); parserCfg.URL != "" {
		parser = command.New(parserCfg)
	}

	sess, err := session.New(session.Options{
		Session:        config.GetSessionConfig(),
		Playback:       config.GetPlaybackConfig(),
		Engine:         engine.New(config.GetEngineConfig()),
		GIS:            gis.New(config.GetGISConfig()),
		Parser:         parser,
		Logger:         logger,
		DispatchLogger: dispatchLog,
		Observers:      observers,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	// the session and its observer lanes stop before the archive and exporter close
	defer func() {
		sess.Close()
		observerLanes.Close()
	}()
	current.Set(sess)

	mon := monitor.NewService(monitor.Dependencies{
		Session:  sess,
		Writer:   statusWriter,
		Logger:   logger,
		Interval: config.GetMonitorConfig().Interval,
	})
	if err := mon.Start(); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	defer mon.Stop()

	srv := server.New(server.Dependencies{
		Config:  serverCfg,
		Session: sess,
		Hub:     hub,
		Runs:    runs,
		Monitor: mon,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	logger.Info("Session started", "session", sess.ID().String())

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err = <-serveErr:
		if err != nil {
			logger.Error("Server stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("Server shutdown failed", "error", stopErr)
	}
	return err
}
