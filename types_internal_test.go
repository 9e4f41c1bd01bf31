package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAttrs(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want string
	}{
		{"no args", nil, ""},
		{"single pair", []any{"status", 500}, " status=500"},
		{"two pairs", []any{"status", 500, "error", errors.New("boom")}, " status=500 error=boom"},
		{"dangling key", []any{"orphan"}, " orphan"},
		{"odd count", []any{"status", 500, "orphan"}, " status=500 orphan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatAttrs(tt.args))
		})
	}
}
