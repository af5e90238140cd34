// Package transport opens the byte stream the reader consumes: a serial
// device attached to the LoRa transceiver, or a capture file for replay.
package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/danmuck/grassroots/internal/ingest"
)

var ErrNoTransport = errors.New("transport: neither port nor replay file configured")

const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 100 * time.Millisecond
)

// Config selects and configures the transport. ReplayFile wins over Port.
type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
	ReplayFile  string
}

func (c Config) WithDefaults() Config {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c
}

func (c Config) Describe() string {
	if strings.TrimSpace(c.ReplayFile) != "" {
		return "replay:" + c.ReplayFile
	}
	return fmt.Sprintf("serial:%s@%d", c.Port, c.BaudRate)
}

// Opener returns an ingest.Opener for cfg. Opening is deferred to the reader.
func Opener(cfg Config) ingest.Opener {
	cfg = cfg.WithDefaults()
	return func() (io.ReadCloser, error) {
		switch {
		case strings.TrimSpace(cfg.ReplayFile) != "":
			return os.Open(cfg.ReplayFile)
		case strings.TrimSpace(cfg.Port) != "":
			return OpenSerial(cfg)
		default:
			return nil, ErrNoTransport
		}
	}
}

// OpenSerial opens the serial device with 8N1 framing. Reads return no
// bytes after ReadTimeout so the reader can observe cancellation.
func OpenSerial(cfg Config) (serial.Port, error) {
	cfg = cfg.WithDefaults()
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", cfg.Port, err)
	}
	return port, nil
}

// ListPorts names the serial devices currently present.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
