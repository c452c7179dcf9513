package log

import "github.com/sirupsen/logrus"

// silentFormatter suppresses the default formatting pass. Logrus still
// formats entries even when the output is io.Discard; the hook performs
// the only real formatting.
type silentFormatter struct{}

func (f *silentFormatter) Format(_ *logrus.Entry) ([]byte, error) {
	return nil, nil
}
