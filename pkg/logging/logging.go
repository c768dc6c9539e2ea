package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings controls how the global zerolog logger is configured.
type Settings struct {
	Level      string
	Format     string
	File       string
	WithCaller bool
}

// InitLogger replaces log.Logger according to settings. It is safe to call
// more than once; the last call wins.
func InitLogger(s Settings) error {
	levelStr := strings.ToLower(strings.TrimSpace(s.Level))
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", s.Level)
	}
	zerolog.SetGlobalLevel(level)

	w, err := writerFor(s)
	if err != nil {
		return err
	}

	ctx := zerolog.New(w).With().Timestamp()
	if s.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	return nil
}

func writerFor(s Settings) (io.Writer, error) {
	format := strings.ToLower(strings.TrimSpace(s.Format))
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, errors.Errorf("invalid log format %q (expected text or json)", s.Format)
	}

	if s.File != "" {
		// rotated file output is always JSON so it stays machine readable
		return &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}, nil
	}

	if format == "json" {
		return os.Stderr, nil
	}
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}, nil
}
