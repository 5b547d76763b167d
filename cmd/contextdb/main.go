package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"contextdb/internal/app"
	"contextdb/pkg/config"
	"contextdb/pkg/logger"
	"contextdb/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dataVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags win over config/env when explicitly provided.
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	if setFlags["data"] {
		cfg.Storage.DataRoot = dataVal
	}

	var srcs []string
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, serr := os.Stat(cfgPath); serr == nil {
		srcs = append(srcs, "config")
	}

	eff := config.EffectiveConfigResult{
		Config: cfg,
		Addr:   addr,
		Source: strings.Join(srcs, ","),
	}

	logger.InitWithLevel(cfg.Logging.Level)

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, cfg.Storage.DataRoot)
	}

	ctx, stop := shutdown.SetupSignalHandler(context.Background())
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("server_exited", "error", err)
		os.Exit(1)
	}
}
