package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantArgs []string
		wantErr  bool
	}{
		{"simple", "/help", "help", nil, false},
		{"with args", "/send private-c1 hello there", "send", []string{"private-c1", "hello", "there"}, false},
		{"surrounding space", "  /open private-c1  ", "open", []string{"private-c1"}, false},
		{"empty", "", "", nil, true},
		{"whitespace only", "   ", "", nil, true},
		{"missing slash", "send private-c1 hi", "", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := ParseCommand(tc.input)
			if tc.wantErr {
				assert.Errorf(t, err, "expected %q rejected", tc.input)
				return
			}
			assert.NoErrorf(t, err, "expected %q parsed", tc.input)
			assert.Equal(t, tc.wantName, cmd.Name, "expected command name")
			if len(tc.wantArgs) == 0 {
				assert.Empty(t, cmd.Args, "expected no args")
			} else {
				assert.Equal(t, tc.wantArgs, cmd.Args, "expected args split on whitespace")
			}
		})
	}
}
