// Package simulate produces wire captures of a small LoRa network: one camera
// node streaming a test image and one sensor node posting DATA records.
// Captures replay through the basestation's replay transport.
package simulate

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/protocol"
	"github.com/danmuck/grassroots/internal/protocol/frame"
)

var ErrNoLabels = errors.New("simulate: sensor node needs at least one label")

const SystemID = 111

// Node addresses one sensor on one LoRa node.
type Node struct {
	SourceID uint8
	SensorID uint8
}

type Config struct {
	Mode          frame.LengthMode
	MaxFrameBytes int

	Camera Node
	Width  int
	Height int
	Depth  int
	Border int

	Sensor   Node
	Labels   []string
	Readings int
	// ReadingEvery interleaves one reading per this many fragments.
	ReadingEvery int
	Seed         uint64
}

func DefaultConfig() Config {
	return Config{
		Mode:          frame.LengthLastIndex,
		MaxFrameBytes: frame.ProtocolMaxBytes,
		Camera:        Node{SourceID: 2, SensorID: 1},
		Width:         500,
		Height:        500,
		Depth:         3,
		Border:        1,
		Sensor:        Node{SourceID: 4, SensorID: 2},
		Labels:        []string{"temp", "humidity"},
		Readings:      40,
		ReadingEvery:  50,
		Seed:          1,
	}
}

// Stats counts frames written by Generate.
type Stats struct {
	Fragments int
	Readings  int
	Notices   int
	Bytes     int
}

func (s Stats) Frames() int {
	return s.Fragments + s.Readings + s.Notices
}

// Generate writes the capture to w.
func Generate(w io.Writer, cfg Config) (Stats, error) {
	if len(cfg.Labels) == 0 && cfg.Readings > 0 {
		return Stats{}, ErrNoLabels
	}
	if cfg.ReadingEvery <= 0 {
		cfg.ReadingEvery = 1
	}
	fragments, err := protocol.SegmentImage(Pattern(cfg.Width, cfg.Height, cfg.Depth), protocol.SegmentOptions{
		Mode:          cfg.Mode,
		MaxFrameBytes: cfg.MaxFrameBytes,
		Border:        cfg.Border,
	})
	if err != nil {
		return Stats{}, err
	}

	g := &generator{w: w, cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}
	if err := g.notice(cfg.Camera, fmt.Sprintf("camera node %d online", cfg.Camera.SourceID)); err != nil {
		return g.stats, err
	}
	if err := g.notice(cfg.Sensor, fmt.Sprintf("sensor node %d online", cfg.Sensor.SourceID)); err != nil {
		return g.stats, err
	}

	for i, f := range fragments {
		if err := g.fragment(f); err != nil {
			return g.stats, err
		}
		if (i+1)%cfg.ReadingEvery == 0 && g.stats.Readings < cfg.Readings {
			if err := g.reading(); err != nil {
				return g.stats, err
			}
		}
	}
	for g.stats.Readings < cfg.Readings {
		if err := g.reading(); err != nil {
			return g.stats, err
		}
	}
	logging.Debugf("simulate.Generate done fragments=%d readings=%d bytes=%d",
		g.stats.Fragments, g.stats.Readings, g.stats.Bytes)
	return g.stats, nil
}

// Pattern is a diagonal gradient with a bright frame one pixel in.
func Pattern(width, height, depth int) protocol.Raster {
	if width <= 0 || height <= 0 || depth <= 0 {
		return protocol.Raster{Width: width, Height: height, Depth: depth}
	}
	pix := make([]byte, width*height*depth)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			edge := row == 1 || col == 1 || row == height-2 || col == width-2
			for ch := 0; ch < depth; ch++ {
				v := byte((row*255/height + col*255/width + ch*85) / 2)
				if edge {
					v = 0xff
				}
				pix[(row*width+col)*depth+ch] = v
			}
		}
	}
	return protocol.Raster{Width: width, Height: height, Depth: depth, Pix: pix}
}

type generator struct {
	w     io.Writer
	cfg   Config
	rng   *rand.Rand
	msgID uint16
	stats Stats
}

func (g *generator) header(n Node, t protocol.MessageType) protocol.Header {
	g.msgID++
	return protocol.Header{
		SystemID:    SystemID,
		SourceID:    n.SourceID,
		MessageID:   g.msgID,
		MessageType: t,
		SensorID:    n.SensorID,
	}
}

func (g *generator) write(h protocol.Header, payload []byte) error {
	f, err := protocol.Encode(g.cfg.Mode, h, payload)
	if err != nil {
		return err
	}
	if err := frame.WriteFrame(g.w, f); err != nil {
		return err
	}
	g.stats.Bytes += len(f)
	return nil
}

func (g *generator) fragment(f protocol.ImageFragment) error {
	payload, err := protocol.FragmentPayload(f)
	if err != nil {
		return err
	}
	if err := g.write(g.header(g.cfg.Camera, protocol.MessageImageFragment), payload); err != nil {
		return err
	}
	g.stats.Fragments++
	return nil
}

func (g *generator) reading() error {
	n := g.stats.Readings
	label := g.cfg.Labels[n%len(g.cfg.Labels)]
	v := 20 + 5*math.Sin(float64(n)/6) + g.rng.NormFloat64()*0.25
	text := protocol.ReadingText(label, strconv.FormatFloat(v, 'f', 2, 64))
	if err := g.text(g.cfg.Sensor, text); err != nil {
		return err
	}
	g.stats.Readings++
	return nil
}

func (g *generator) notice(n Node, text string) error {
	if err := g.text(n, text); err != nil {
		return err
	}
	g.stats.Notices++
	return nil
}

func (g *generator) text(n Node, text string) error {
	payload, err := protocol.TextPayload(g.cfg.Mode, g.cfg.MaxFrameBytes, text)
	if err != nil {
		return err
	}
	return g.write(g.header(n, protocol.MessageText), payload)
}
