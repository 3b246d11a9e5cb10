package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/route-beacon/ribagent/internal/agent"
	"github.com/route-beacon/ribagent/internal/config"
	"github.com/route-beacon/ribagent/internal/fib"
	ribhttp "github.com/route-beacon/ribagent/internal/http"
	"github.com/route-beacon/ribagent/internal/metrics"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: ribagent <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve   Start the routing agent")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func runServe() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	logger.Info("starting ribagent",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("router_id", cfg.RouterID),
		zap.String("http_listen", cfg.Service.HTTPListen),
	)

	a, err := agent.New(cfg, fib.NewLoggingBackend(logger.Named("fib")), logger)
	if err != nil {
		logger.Fatal("failed to build agent", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agentDone := make(chan error, 1)
	go func() { agentDone <- a.Run(ctx) }()

	httpServer := ribhttp.NewServer(cfg.Service.HTTPListen, a.Journal(), a.EventBus(), logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start http server", zap.Error(err))
	}

	logger.Info("agent and http server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}
		<-agentDone
	case err := <-agentDone:
		if err != nil {
			logger.Error("agent stopped unexpectedly", zap.Error(err))
		}
		if err := httpServer.Shutdown(context.Background()); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}
	}

	logger.Info("ribagent stopped")
}
