package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alchemy/rotoslog"
	"github.com/phsym/console-slog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"m7s.live/mp4"
)

var Version = "development"

const optionsKey = "options"

func newApp() *cli.App {
	return &cli.App{
		Name:    "mp4info",
		Usage:   "Inspect and rewrite MP4 files",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Set log level (trace, debug, info, warn, error)", EnvVars: []string{"MP4_LOG_LEVEL"}},
			&cli.StringFlag{Name: "log-dir", Usage: "Write rotated log files to this directory instead of stderr", EnvVars: []string{"MP4_LOG_DIR"}},
			&cli.StringFlag{Name: "config", TakesFile: true, Usage: "YAML file with reader and writer options"},
		},
		Before:   setup,
		Commands: []*cli.Command{dumpCommand, infoCommand, extractCommand, remuxCommand},
	}
}

// setup builds the logger and the options every command works with.
func setup(c *cli.Context) error {
	logger, err := newLogger(c.String("log-level"), c.String("log-dir"), c.App.ErrWriter)
	if err != nil {
		return err
	}
	opts := mp4.DefaultOptions()
	if path := c.String("config"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "open config")
		}
		defer f.Close()
		if opts, err = mp4.LoadOptions(f); err != nil {
			return err
		}
	}
	opts.Logger = logger
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[optionsKey] = opts
	return nil
}

func options(c *cli.Context) *mp4.Options {
	if opts, ok := c.App.Metadata[optionsKey].(*mp4.Options); ok {
		return opts
	}
	return mp4.DefaultOptions()
}

func newLogger(level, dir string, w io.Writer) (*slog.Logger, error) {
	lv := mp4.ParseLevel(level)
	builder := func(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
		return console.NewHandler(w, &console.HandlerOptions{NoColor: true, Level: lv, TimeFormat: "2006-01-02 15:04:05.000"})
	}
	if dir == "" {
		if w == nil {
			w = os.Stderr
		}
		return slog.New(builder(w, nil)), nil
	}
	var handler slog.Handler
	handler, err := rotoslog.NewHandler(rotoslog.LogHandlerBuilder(builder), rotoslog.LogDir(dir), rotoslog.MaxFileSize(1<<20), rotoslog.DateTimeLayout("2006-01-02T15"), rotoslog.MaxRotatedFiles(7))
	if err != nil {
		return nil, errors.Wrap(err, "log dir")
	}
	return slog.New(handler), nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("mp4info failed", "error", err)
		os.Exit(1)
	}
}
