package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ekisa-team/scanbill/internal/config"
	"github.com/ekisa-team/scanbill/internal/env"
	"github.com/ekisa-team/scanbill/internal/logger"
)

var (
	flagConfigPath string
	flagSchemaPath string
	flagLogLevel   string
	flagLogToFile  bool
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "scanbill",
		Usage: "Export YOLO checkpoints, detect products and bill them",
		Description: `Run without a command to export the stock checkpoint (` + config.DefaultCheckpoint + `) to ONNX.
				The export itself is done by the ultralytics framework; scanbill drives it and checks the result.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to config file",
				Aliases:     []string{"c"},
				Destination: &flagConfigPath,
				Value:       filepath.Join(config.DefaultConfigPath(), "config.yaml"),
			},
			&cli.StringFlag{
				Name:        "schema",
				Usage:       "Path to schema file. The built-in schema is used when empty",
				Destination: &flagSchemaPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warn or error. Defaults to debug in development and info otherwise",
				Destination: &flagLogLevel,
			},
			&cli.BoolFlag{
				Name:        "log-to-file",
				Usage:       "Also write JSON logs to logs/scanbill.log",
				Destination: &flagLogToFile,
			},
		},
		Before: setupLogger,
		Action: exportDefault,
		Commands: []*cli.Command{
			exportCommand,
			inspectCommand,
			detectCommand,
			billCommand,
			serveCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("scanbill failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cCtx *cli.Context) error {
	opts := []logger.Option{
		logger.WithLogToFile(flagLogToFile),
		logger.WithLogFile("logs/scanbill.log"),
	}
	if flagLogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToUpper(flagLogLevel))); err != nil {
			return fmt.Errorf("invalid log level %q", flagLogLevel)
		}
		opts = append(opts, logger.WithLevel(level))
	}
	if w := cCtx.App.ErrWriter; w != nil && w != os.Stderr {
		opts = append(opts, logger.WithWriter(w))
	}

	slog.SetDefault(logger.New(env.FromEnv(), opts...))
	return nil
}

// loadConfig reads the config file, or the built-in defaults when it does
// not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(flagConfigPath, flagSchemaPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("Config loaded", "config", flagConfigPath)
	return cfg, nil
}
