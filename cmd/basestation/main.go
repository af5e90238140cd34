package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/grassroots/internal/basestation"
	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/observability"
	"github.com/danmuck/grassroots/internal/server"
	"github.com/danmuck/grassroots/internal/transport"
)

func main() {
	var flags overrideFlags
	configPath := flag.String("config", "", "basestation config path (defaults apply when empty)")
	listPorts := flag.Bool("list-ports", false, "print serial ports and exit")
	flag.StringVar(&flags.port, "port", "", "serial device, overrides config")
	flag.StringVar(&flags.replay, "replay", "", "replay frames from a capture file, overrides config")
	flag.StringVar(&flags.httpAddr, "http", "", "collaborator API address, overrides config")
	flag.StringVar(&flags.dataLog, "data-log", "", "sensor CSV path, overrides config")
	flag.Parse()

	logging.ConfigureRuntime()

	if *listPorts {
		ports, err := transport.ListPorts()
		if err != nil {
			fail(err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadServiceConfig(*configPath, flags)
	if err != nil {
		fail(err)
	}

	observability.RegisterMetrics()
	svc, err := basestation.NewService(cfg)
	if err != nil {
		fail(err)
	}
	if cfg.HTTPAddr != "" {
		svc.Attach(server.New(cfg.Name, cfg.HTTPAddr, cfg.CORSOrigins, svc))
	}
	if err := svc.Run(); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "basestation: %v\n", err)
	os.Exit(1)
}
