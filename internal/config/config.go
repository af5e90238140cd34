// Package config maps basestation TOML files onto basestation.ServiceConfig
// and renders the default template.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/grassroots/internal/basestation"
	"github.com/danmuck/grassroots/internal/protocol/frame"
)

// File is the on-disk shape of a basestation config.
type File struct {
	Name           string   `toml:"name" comment:"service name used in logs, metrics and /health"`
	Port           string   `toml:"port" comment:"serial device of the LoRa transceiver, e.g. /dev/ttyUSB0"`
	BaudRate       int      `toml:"baud_rate"`
	ReadTimeout    string   `toml:"read_timeout" comment:"serial read timeout; bounds how long shutdown waits on the reader"`
	ReplayFile     string   `toml:"replay_file" comment:"read frames from a capture file instead of the serial port"`
	LengthMode     string   `toml:"length_mode" comment:"last_index (byte 0 = total length - 1) or inclusive"`
	MaxFrameBytes  int      `toml:"max_frame_bytes"`
	QueueCapacity  int      `toml:"queue_capacity"`
	DropWhenFull   bool     `toml:"drop_when_full" comment:"drop frames while the queue is full instead of pausing the reader"`
	ImageWidth     int      `toml:"image_width"`
	ImageHeight    int      `toml:"image_height"`
	ImageDepth     int      `toml:"image_depth"`
	SeriesCapacity int      `toml:"series_capacity"`
	NoticeCapacity int      `toml:"notice_capacity"`
	TickInterval   string   `toml:"tick_interval" comment:"consumer tick; at most one frame is handled per tick"`
	DataLog        string   `toml:"data_log" comment:"CSV log of every sensor reading; empty disables it"`
	DataLogAppend  bool     `toml:"data_log_append"`
	HTTPAddr       string   `toml:"http_addr" comment:"collaborator API listen address; empty disables it"`
	CORSOrigins    []string `toml:"cors_origins"`
}

// FromService renders cfg in file form.
func FromService(cfg basestation.ServiceConfig) File {
	return File{
		Name:           cfg.Name,
		Port:           cfg.Transport.Port,
		BaudRate:       cfg.Transport.BaudRate,
		ReadTimeout:    cfg.Transport.ReadTimeout.String(),
		ReplayFile:     cfg.Transport.ReplayFile,
		LengthMode:     cfg.LengthMode.String(),
		MaxFrameBytes:  cfg.MaxFrameBytes,
		QueueCapacity:  cfg.QueueCapacity,
		DropWhenFull:   cfg.DropWhenFull,
		ImageWidth:     cfg.Image.Width,
		ImageHeight:    cfg.Image.Height,
		ImageDepth:     cfg.Image.Depth,
		SeriesCapacity: cfg.SeriesCapacity,
		NoticeCapacity: cfg.NoticeCapacity,
		TickInterval:   cfg.TickInterval.String(),
		DataLog:        cfg.DataLogPath,
		DataLogAppend:  cfg.DataLogAppend,
		HTTPAddr:       cfg.HTTPAddr,
		CORSOrigins:    append([]string(nil), cfg.CORSOrigins...),
	}
}

// Load decodes path over DefaultServiceConfig. Keys missing from the file
// keep their defaults.
func Load(path string) (basestation.ServiceConfig, error) {
	cfg := basestation.DefaultServiceConfig()

	var raw File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return basestation.ServiceConfig{}, fmt.Errorf("load basestation config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return basestation.ServiceConfig{}, fmt.Errorf("load basestation config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if meta.IsDefined("port") {
		cfg.Transport.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud_rate") {
		cfg.Transport.BaudRate = raw.BaudRate
	}
	if meta.IsDefined("read_timeout") {
		d, err := parseDuration("read_timeout", raw.ReadTimeout)
		if err != nil {
			return basestation.ServiceConfig{}, err
		}
		cfg.Transport.ReadTimeout = d
	}
	if meta.IsDefined("replay_file") {
		cfg.Transport.ReplayFile = strings.TrimSpace(raw.ReplayFile)
	}
	if meta.IsDefined("length_mode") {
		mode, err := frame.ParseLengthMode(raw.LengthMode)
		if err != nil {
			return basestation.ServiceConfig{}, fmt.Errorf("parse length_mode: %w", err)
		}
		cfg.LengthMode = mode
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("queue_capacity") {
		cfg.QueueCapacity = raw.QueueCapacity
	}
	if meta.IsDefined("drop_when_full") {
		cfg.DropWhenFull = raw.DropWhenFull
	}
	if meta.IsDefined("image_width") {
		cfg.Image.Width = raw.ImageWidth
	}
	if meta.IsDefined("image_height") {
		cfg.Image.Height = raw.ImageHeight
	}
	if meta.IsDefined("image_depth") {
		cfg.Image.Depth = raw.ImageDepth
	}
	if meta.IsDefined("series_capacity") {
		cfg.SeriesCapacity = raw.SeriesCapacity
	}
	if meta.IsDefined("notice_capacity") {
		cfg.NoticeCapacity = raw.NoticeCapacity
	}
	if meta.IsDefined("tick_interval") {
		d, err := parseDuration("tick_interval", raw.TickInterval)
		if err != nil {
			return basestation.ServiceConfig{}, err
		}
		cfg.TickInterval = d
	}
	if meta.IsDefined("data_log") {
		cfg.DataLogPath = strings.TrimSpace(raw.DataLog)
	}
	if meta.IsDefined("data_log_append") {
		cfg.DataLogAppend = raw.DataLogAppend
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}

	if err := cfg.Validate(); err != nil {
		return basestation.ServiceConfig{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}
