package log

import (
	"fmt"
	"os"
)

// Options configures the logging system.
type Options struct {
	Name  string // application identifier used for log file names
	Dir   string // directory for log files ("" means ./logs)
	Level Level

	MaxAge     int // days before old log files are deleted (0: keep forever)
	MaxSizeMB  int // rotation size in MB (0: default 100)
	MaxBackups int // rotated files to keep (0: default 20)

	EnableCriticalLog bool // write ERROR and above to a separate file
	EnableVerboseLog  bool // write DEBUG and below to a separate file
	EnableConsoleLog  bool // mirror all levels to stdout

	// ReportCaller records the call site (file:line) of each entry.
	ReportCaller bool

	// CallerPathPrefix is trimmed from the front of reported function
	// paths to keep entries readable.
	CallerPathPrefix string
}

// Validate checks the option values before Setup uses them.
func (opts *Options) Validate() error {
	if opts.Name == "" {
		return fmt.Errorf("application identifier (Name) is not set")
	}

	if opts.Dir != "" {
		if info, err := os.Stat(opts.Dir); err == nil && !info.IsDir() {
			return fmt.Errorf("log directory path %s already exists as a file", opts.Dir)
		}
	}

	if opts.MaxAge < 0 {
		return fmt.Errorf("MaxAge must not be negative: %d", opts.MaxAge)
	}
	if opts.MaxSizeMB < 0 {
		return fmt.Errorf("MaxSizeMB must not be negative: %d", opts.MaxSizeMB)
	}
	if opts.MaxBackups < 0 {
		return fmt.Errorf("MaxBackups must not be negative: %d", opts.MaxBackups)
	}

	return nil
}
