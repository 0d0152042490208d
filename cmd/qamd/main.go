package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/qamd/pkg/config"
	"github.com/dougsko/qamd/pkg/engine"
	"github.com/dougsko/qamd/pkg/logging"
)

var (
	configPath = flag.String("config", "", "Configuration file path (built-in defaults when empty)")
	version    = flag.Bool("version", false, "Show version information")
)

const Build = "development"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("qamd version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Info(logging.ComponentMain, fmt.Sprintf("qamd version %s starting...", engine.Version))
	logging.Info(logging.ComponentMain, fmt.Sprintf("Codec: %d bits per symbol, %.1f° rotation, %d workers",
		cfg.Codec.BitsPerSymbol, cfg.Codec.RotationDegrees, cfg.Codec.Workers))
	logging.Info(logging.ComponentMain, fmt.Sprintf("Web interface: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port))

	daemon, err := NewQAMDaemon(cfg)
	if err != nil {
		logging.Error(logging.ComponentMain, fmt.Sprintf("Failed to create daemon: %v", err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Error(logging.ComponentMain, fmt.Sprintf("Failed to start daemon: %v", err))
		os.Exit(1)
	}

	logging.Info(logging.ComponentMain, "qamd started successfully")

	<-sigChan
	logging.Info(logging.ComponentMain, "Shutting down...")

	if err := daemon.Stop(); err != nil {
		logging.Error(logging.ComponentMain, fmt.Sprintf("Error during shutdown: %v", err))
	}

	logging.Info(logging.ComponentMain, "qamd stopped")
}
