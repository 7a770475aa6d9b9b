// Package logging configures the hclog loggers used across avpkg.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"
)

// Environment variables read by the logger.
const (
	LevelEnv = "AVPKG_LOG_LEVEL"
	JSONEnv  = "AVPKG_LOG_JSON"
)

// New creates a logger named name writing to output, stderr when nil.
// Color is only used when output is a terminal.
func New(name, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}
	jsonFormat := os.Getenv(JSONEnv) == "1"

	color := hclog.ColorOff
	if f, ok := output.(*os.File); ok && !jsonFormat && isatty.IsTerminal(f.Fd()) {
		color = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		Color:      color,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Level returns the configured level: verbose forces debug, otherwise
// $AVPKG_LOG_LEVEL, defaulting to info.
func Level(verbose bool) string {
	if verbose {
		return "debug"
	}
	if level := os.Getenv(LevelEnv); level != "" {
		return level
	}
	return "info"
}
