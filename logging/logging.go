// Package logging builds the charmbracelet/log loggers used by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	output    io.Writer = os.Stderr
	formatter           = log.TextFormatter
	caller              = false
)

// New creates a logger with a component prefix that follows the global level
func New(prefix string) *log.Logger {
	return log.NewWithOptions(output, log.Options{
		Prefix:          prefix,
		ReportCaller:    caller,
		ReportTimestamp: true,
		Formatter:       formatter,
		Level:           log.GetLevel(),
	})
}

// NewWithConfig creates a logger with a custom config
func NewWithConfig(prefix string, level log.Level, reportCaller bool, showTimestamp bool, fmt log.Formatter) *log.Logger {
	return log.NewWithOptions(output, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportCaller:    reportCaller,
		ReportTimestamp: showTimestamp,
		Formatter:       fmt,
	})
}

// ParseFormatter maps a config value to a formatter, "" is text
func ParseFormatter(name string) (log.Formatter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	}
	return log.TextFormatter, fmt.Errorf("unknown log format %q", name)
}

// Setup sets the level, format and caller reporting of the default logger and of every
// logger created afterwards with New
func Setup(level, format string, reportCaller bool) error {
	lvl := log.InfoLevel
	if level != "" {
		var err error
		if lvl, err = log.ParseLevel(level); err != nil {
			return err
		}
	}
	f, err := ParseFormatter(format)
	if err != nil {
		return err
	}
	formatter, caller = f, reportCaller
	log.SetLevel(lvl)
	log.SetFormatter(f)
	log.SetReportCaller(reportCaller)
	log.SetOutput(output)
	return nil
}

// SetOutput redirects every logger created afterwards, tests use it to silence logs
func SetOutput(w io.Writer) {
	output = w
	log.SetOutput(w)
}
