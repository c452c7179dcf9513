package log

import (
	log "github.com/sirupsen/logrus"
)

// MaskSensitiveData masks tokens and other secrets for safe logging.
func MaskSensitiveData(data string) string {
	if data == "" {
		return ""
	}

	if len(data) <= 3 {
		return "***"
	}

	if len(data) <= 12 {
		return data[:4] + "***"
	}

	return data[:4] + "***" + data[len(data)-4:]
}

// WithComponent returns an entry tagged with the component field. Every
// log line in the application carries this field.
func WithComponent(component string) *log.Entry {
	return log.WithFields(log.Fields{
		"component": component,
	})
}

// WithComponentAndFields returns an entry tagged with the component
// field plus the given extra fields.
func WithComponentAndFields(component string, fields log.Fields) *log.Entry {
	newFields := make(log.Fields, len(fields)+1)
	for k, v := range fields {
		newFields[k] = v
	}
	newFields["component"] = component
	return log.WithFields(newFields)
}
