package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTerm(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Rizz", "rizz"},
		{"trims", "  no cap  ", "no cap"},
		{"collapses internal whitespace", "no \t  cap", "no cap"},
		{"mixed case phrase", "Touch   GRASS", "touch grass"},
		{"already normal", "mid", "mid"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTerm(tt.input))
		})
	}
}
