package errors

// ErrorType classifies an error by its nature and origin.
type ErrorType int

const (
	// Unknown is the zero value for unclassified errors.
	Unknown ErrorType = iota

	// Internal marks application logic faults (bugs).
	Internal

	// System marks system or infrastructure failures (disk, network).
	System

	// InvalidInput marks validation failures of user-supplied values.
	InvalidInput

	// NotFound marks a missing resource.
	NotFound

	// ExecutionFailed marks a failed business operation, such as a
	// remote call that could not complete.
	ExecutionFailed

	// ParsingFailed marks a failure to parse or decode data.
	ParsingFailed

	// Timeout marks an operation that ran out of time.
	Timeout

	// Unavailable marks a temporarily unusable upstream service.
	Unavailable
)

var errorTypeNames = map[ErrorType]string{
	Unknown:         "Unknown",
	Internal:        "Internal",
	System:          "System",
	InvalidInput:    "InvalidInput",
	NotFound:        "NotFound",
	ExecutionFailed: "ExecutionFailed",
	ParsingFailed:   "ParsingFailed",
	Timeout:         "Timeout",
	Unavailable:     "Unavailable",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}
