package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/funcbox/funcbox"
	"github.com/funcbox/funcbox/jsengine"
	"github.com/funcbox/funcbox/mcpserve"
	"github.com/funcbox/funcbox/scriptstore"
	"github.com/funcbox/funcbox/toolkits/pdftool"
	"github.com/funcbox/funcbox/toolkits/scripttool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "funcbox"
	serverVersion = "0.1.0"
)

func main() {
	logger := mustBuildLogger(envOrDefault("FUNCBOX_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	scriptDir := envOrDefault("FUNCBOX_SCRIPT_DIR", "scripts")
	timeoutMs := envOrDefaultInt("FUNCBOX_DEFAULT_TIMEOUT_MS", 5000)
	maxConcurrency := envOrDefaultInt("FUNCBOX_MAX_CONCURRENCY", 10)

	logger.Info("starting funcbox server",
		zap.String("script_dir", scriptDir),
		zap.Int("default_timeout_ms", timeoutMs),
		zap.Int("max_concurrency", maxConcurrency),
	)

	store := scriptstore.New(scriptDir)
	engine := jsengine.New(logger)

	reg := funcbox.NewRegistry(
		funcbox.WithDefaultTimeout(time.Duration(timeoutMs)*time.Millisecond),
		funcbox.WithMaxConcurrency(maxConcurrency),
		funcbox.WithRecoverPanics(true),
	)
	reg.Use(funcbox.WithLogging(logger))

	scripts, err := scripttool.New(store, engine)
	if err != nil {
		logger.Fatal("script toolkit init failed", zap.Error(err))
	}
	tools, err := scripts.Tools()
	if err != nil {
		logger.Fatal("script toolkit init failed", zap.Error(err))
	}
	for _, t := range tools {
		reg.Register(t)
	}

	pdfTool, err := pdftool.NewExtractTextTool()
	if err != nil {
		logger.Fatal("pdf toolkit init failed", zap.Error(err))
	}
	reg.Register(pdfTool)

	server, err := mcpserve.NewServer(reg, serverName, serverVersion, logger)
	if err != nil {
		logger.Fatal("mcp server init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := reg.Shutdown(shutdownCtx); err != nil {
		logger.Warn("registry shutdown incomplete", zap.Error(err))
	}
	logger.Info("funcbox server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	// stdout carries the MCP protocol; all logging goes to stderr.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
