package main

import (
	"log/slog"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/pkg/core"
)

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("Failed to load config", err)
	}
	slog.Debug("config loaded", "file", cfg.File, "adapter", cfg.Adapter, "mapping_dir", cfg.MappingDir)
	return cfg
}

func openManager(cfg *config.Config) *core.Manager {
	m, err := strata.New(cfg.Options(slog.Default())...)
	if err != nil {
		fatal("Failed to initialize strata", err)
	}
	return m
}
