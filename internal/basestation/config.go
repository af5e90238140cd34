package basestation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/grassroots/internal/imaging"
	"github.com/danmuck/grassroots/internal/ingest"
	"github.com/danmuck/grassroots/internal/protocol/frame"
	"github.com/danmuck/grassroots/internal/series"
	"github.com/danmuck/grassroots/internal/transport"
)

var (
	ErrInvalidTickInterval = errors.New("basestation: invalid tick interval")
	ErrInvalidFrameLimit   = errors.New("basestation: invalid max frame bytes")
)

const DefaultNoticeCapacity = 14

// ServiceConfig configures one basestation run.
type ServiceConfig struct {
	Name          string
	Transport     transport.Config
	LengthMode    frame.LengthMode
	MaxFrameBytes int
	QueueCapacity int
	// DropWhenFull lets the reader drop frames while the queue is full
	// instead of waiting for the consumer.
	DropWhenFull   bool
	Image          imaging.Dims
	SeriesCapacity int
	NoticeCapacity int
	TickInterval   time.Duration
	DataLogPath    string
	DataLogAppend  bool
	HTTPAddr       string
	CORSOrigins    []string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name: "basestation",
		Transport: transport.Config{
			BaudRate:    transport.DefaultBaudRate,
			ReadTimeout: transport.DefaultReadTimeout,
		},
		LengthMode:     frame.LengthLastIndex,
		MaxFrameBytes:  frame.ProtocolMaxBytes,
		QueueCapacity:  ingest.DefaultQueueCapacity,
		Image:          imaging.DefaultDims(),
		SeriesCapacity: series.DefaultCapacity,
		NoticeCapacity: DefaultNoticeCapacity,
		TickInterval:   10 * time.Millisecond,
		DataLogPath:    "SensorData.csv",
		HTTPAddr:       "127.0.0.1:8090",
		CORSOrigins:    []string{"http://localhost:3000"},
	}
}

// Validate checks a config before bootstrap.
func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("basestation config missing name")
	}
	if c.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	if c.MaxFrameBytes <= 0 || c.MaxFrameBytes > frame.ProtocolMaxBytes {
		return fmt.Errorf("%w: %d", ErrInvalidFrameLimit, c.MaxFrameBytes)
	}
	if err := c.Image.Validate(); err != nil {
		return err
	}
	if c.Image.Depth > 0xff {
		return fmt.Errorf("%w: depth %d", imaging.ErrInvalidDims, c.Image.Depth)
	}
	if c.SeriesCapacity <= 0 {
		return fmt.Errorf("basestation: invalid series capacity %d", c.SeriesCapacity)
	}
	return nil
}

func (c ServiceConfig) limits() frame.Limits {
	return frame.Limits{MaxFrameBytes: c.MaxFrameBytes, Mode: c.LengthMode}
}
