package log

import (
	"github.com/sirupsen/logrus"
)

// Level is an alias for logrus.Level.
type Level = logrus.Level

const (
	// PanicLevel logs and then calls panic(). Reserved for unrecoverable
	// internal faults.
	PanicLevel Level = logrus.PanicLevel

	// FatalLevel logs and then calls os.Exit(1). Used when the process
	// cannot continue, such as a failed startup.
	FatalLevel Level = logrus.FatalLevel

	// ErrorLevel marks failures that need attention but do not stop the
	// process.
	ErrorLevel Level = logrus.ErrorLevel

	// WarnLevel marks conditions that are not yet errors but deserve
	// attention.
	WarnLevel Level = logrus.WarnLevel

	// InfoLevel records the normal operational flow.
	InfoLevel Level = logrus.InfoLevel

	// DebugLevel records detail useful during development.
	DebugLevel Level = logrus.DebugLevel

	// TraceLevel records the finest-grained detail.
	TraceLevel Level = logrus.TraceLevel
)

// AllLevels is an alias for logrus.AllLevels.
var AllLevels = logrus.AllLevels

// Fields is an alias for logrus.Fields.
type Fields = logrus.Fields

// Entry is an alias for logrus.Entry.
type Entry = logrus.Entry

// Hook is an alias for logrus.Hook.
type Hook = logrus.Hook

// Logger is an alias for logrus.Logger.
type Logger = logrus.Logger

// Formatter is an alias for logrus.Formatter.
type Formatter = logrus.Formatter
