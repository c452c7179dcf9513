package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMaskSensitiveData(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "short value is fully masked",
			input:    "abc",
			expected: "***",
		},
		{
			name:     "medium value keeps prefix",
			input:    "abcdefgh",
			expected: "abcd***",
		},
		{
			name:     "long token keeps prefix and suffix",
			input:    "123456789:AAHsecrettokenvalue",
			expected: "1234***alue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskSensitiveData(tt.input))
		})
	}
}

func TestWithComponent(t *testing.T) {
	entry := WithComponent("monitor")

	assert.Equal(t, "monitor", entry.Data["component"])
}

func TestWithComponentAndFields(t *testing.T) {
	entry := WithComponentAndFields("monitor", logrus.Fields{
		"thread_id": "123456",
		"comments":  3,
	})

	assert.Equal(t, "monitor", entry.Data["component"])
	assert.Equal(t, "123456", entry.Data["thread_id"])
	assert.Equal(t, 3, entry.Data["comments"])
}

func TestWithComponentAndFieldsDoesNotMutateInput(t *testing.T) {
	fields := logrus.Fields{"thread_id": "123456"}

	WithComponentAndFields("monitor", fields)

	_, ok := fields["component"]
	assert.False(t, ok)
}
