package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/dougsko/qamd/pkg/config"
	"github.com/dougsko/qamd/pkg/engine"
	"github.com/dougsko/qamd/pkg/logging"
	"github.com/dougsko/qamd/pkg/storage"
	"github.com/dougsko/qamd/pkg/verbose"
)

const flagConfig = "config"

var (
	configFlag = cli.StringFlag{
		Name:  flagConfig + ", c",
		Usage: "YAML configuration file",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "Print trace output",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Value: "warn",
		Usage: "Log level (debug, info, warn, error); overrides the config file when set",
	}
	noHistoryFlag = cli.BoolFlag{
		Name:  "no-history",
		Usage: "Do not record jobs in the history database",
	}
)

// session is the configured engine shared by one command run
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *storage.JobStore
	engine *engine.Engine
	out    io.Writer
}

// openSession loads configuration and builds the engine. The history
// database is opened when withHistory is set and --no-history is not.
func openSession(ctx *cli.Context, withHistory bool) (*session, error) {
	verbose.SetEnabled(ctx.GlobalBool(verboseFlag.Name))

	cfg := config.Default()
	path := ctx.GlobalString(flagConfig)
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		verbose.Printf("Loaded configuration from %s", path)
	}
	if path == "" || ctx.GlobalIsSet(logLevelFlag.Name) {
		cfg.Logging.Level = ctx.GlobalString(logLevelFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.SetGlobalLogger(logger)

	s := &session{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
	}

	var recorder engine.Recorder
	if withHistory && !ctx.GlobalBool(noHistoryFlag.Name) {
		store, err := storage.NewJobStore(cfg.Storage.DatabasePath, cfg.Storage.MaxJobs)
		if err != nil {
			logger.Warn(logging.ComponentStorage, fmt.Sprintf("job history disabled: %v", err))
		} else {
			s.store = store
			recorder = store
			verbose.Printf("Recording jobs in %s", cfg.Storage.DatabasePath)
		}
	}

	s.engine = engine.NewEngine(cfg, logger, recorder)
	verbose.Printf("Codec: rotation %.1f°, saturate %v, %d workers",
		cfg.Codec.RotationDegrees, cfg.Codec.Saturate, cfg.Codec.Workers)

	return s, nil
}

// Close releases the history database and log files
func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
	s.logger.Close()
}
