package main

import (
	"strings"

	"github.com/danmuck/grassroots/internal/basestation"
	"github.com/danmuck/grassroots/internal/config"
)

type overrideFlags struct {
	port     string
	replay   string
	httpAddr string
	dataLog  string
}

func loadServiceConfig(path string, flags overrideFlags) (basestation.ServiceConfig, error) {
	cfg := basestation.DefaultServiceConfig()
	if strings.TrimSpace(path) != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return basestation.ServiceConfig{}, err
		}
		cfg = loaded
	}

	if v := strings.TrimSpace(flags.port); v != "" {
		cfg.Transport.Port = v
		cfg.Transport.ReplayFile = ""
	}
	if v := strings.TrimSpace(flags.replay); v != "" {
		cfg.Transport.ReplayFile = v
	}
	if v := strings.TrimSpace(flags.httpAddr); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(flags.dataLog); v != "" {
		cfg.DataLogPath = v
	}
	return cfg, nil
}
