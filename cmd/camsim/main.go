package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/protocol/frame"
	"github.com/danmuck/grassroots/internal/simulate"
)

func main() {
	cfg := simulate.DefaultConfig()
	output := flag.String("output", "capture.bin", "capture file to write")
	mode := flag.String("length-mode", cfg.Mode.String(), "length byte convention: last_index|inclusive")
	flag.IntVar(&cfg.Width, "width", cfg.Width, "image width")
	flag.IntVar(&cfg.Height, "height", cfg.Height, "image height")
	flag.IntVar(&cfg.Depth, "depth", cfg.Depth, "bytes per pixel")
	flag.IntVar(&cfg.Readings, "readings", cfg.Readings, "DATA records to emit")
	flag.IntVar(&cfg.ReadingEvery, "reading-every", cfg.ReadingEvery, "fragments between readings")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "reading noise seed")
	flag.Parse()

	logging.ConfigureRuntime()

	m, err := frame.ParseLengthMode(*mode)
	if err != nil {
		fail(err)
	}
	cfg.Mode = m

	f, err := os.Create(*output)
	if err != nil {
		fail(err)
	}
	w := bufio.NewWriter(f)
	stats, err := simulate.Generate(w, cfg)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fail(err)
	}
	logging.Infof("camsim wrote output=%q frames=%d fragments=%d readings=%d bytes=%d",
		*output, stats.Frames(), stats.Fragments, stats.Readings, stats.Bytes)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "camsim: %v\n", err)
	os.Exit(1)
}
