package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// hook routes each log entry to its writers by level: ERROR and above
// also go to the critical writer, DEBUG and below only to the verbose
// writer, everything else to the main writer. The console writer, when
// set, receives all levels.
type hook struct {
	mainWriter     io.Writer // INFO / WARN / ERROR / FATAL / PANIC
	criticalWriter io.Writer // ERROR / FATAL / PANIC
	verboseWriter  io.Writer // DEBUG / TRACE
	consoleWriter  io.Writer // all levels

	formatter Formatter

	// mu guards shutdown against in-flight Fire calls.
	mu sync.RWMutex

	closed bool
}

func (h *hook) Levels() []Level {
	return AllLevels
}

// Fire formats the entry once and distributes it to the configured
// writers.
func (h *hook) Fire(entry *Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}

	msg, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	var firstErr error

	// Console output failures must not take down the logging system.
	if h.consoleWriter != nil {
		if _, err := h.consoleWriter.Write(msg); err != nil {
			fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-WARN] console write failed: %v\n", err)
		}
	}

	if entry.Level <= ErrorLevel {
		if h.criticalWriter != nil {
			if _, err := h.criticalWriter.Write(msg); err != nil {
				firstErr = err
				fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-FAILURE] critical log write failed: %v\n", err)
			}
		}
	}

	if entry.Level >= DebugLevel {
		if h.verboseWriter != nil {
			if _, err := h.verboseWriter.Write(msg); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-WARN] verbose log write failed: %v\n", err)
			}
		}

		// Debug and trace entries never reach the main log.
		return firstErr
	}

	if h.mainWriter != nil {
		if _, err := h.mainWriter.Write(msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			fmt.Fprintf(os.Stderr, "[LOG-SYSTEM-FAILURE] main log write failed: %v\n", err)
		}
	}

	return firstErr
}

// Close blocks until in-flight Fire calls complete, then rejects all
// further entries.
func (h *hook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	return nil
}
