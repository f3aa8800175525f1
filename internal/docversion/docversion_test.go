package docversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"", false},
		{"1.0", false},
		{"1.1", false},
		{"1.7.2", false},
		{"0.9", false},
		{"2.0", true},
		{"banana", true},
	}
	for _, tt := range tests {
		err := Check(tt.version, "1.1")
		if tt.wantErr {
			assert.Error(t, err, tt.version)
		} else {
			assert.NoError(t, err, tt.version)
		}
	}
}
