package chain

import (
	"strings"
	"testing"

	"addrscope/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	evm := []models.ChainFamily{models.EVMMain, models.EVMSide}
	tron := []models.ChainFamily{models.TronLike}

	tests := []struct {
		name     string
		input    string
		expected []models.ChainFamily
	}{
		{"mixed case evm", "0xdAC17F958D2ee523a2206206994597C13D831ec7", evm},
		{"lower case evm", "0x" + strings.Repeat("a", 40), evm},
		{"upper case evm", "0x" + strings.Repeat("F", 40), evm},
		{"tron", "T" + strings.Repeat("x", 33), tron},
		{"tron real", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", tron},
		{"39 hex chars", "0x" + strings.Repeat("a", 39), nil},
		{"41 hex chars", "0x" + strings.Repeat("a", 41), nil},
		{"non hex", "0x" + strings.Repeat("g", 40), nil},
		{"missing prefix", strings.Repeat("a", 42), nil},
		{"upper prefix", "0X" + strings.Repeat("a", 40), nil},
		{"tron too short", "T" + strings.Repeat("x", 32), nil},
		{"tron too long", "T" + strings.Repeat("x", 34), nil},
		{"tron symbol", "T" + strings.Repeat("x", 32) + "_", nil},
		{"lowercase t", "t" + strings.Repeat("x", 33), nil},
		{"empty", "", nil},
		{"whitespace", " 0x" + strings.Repeat("a", 40), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			if tt.expected == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress(models.EVMMain, "0xABCdef", "0xabcDEF"))
	assert.True(t, SameAddress(models.EVMSide, "0xabc", "0xABC"))
	assert.False(t, SameAddress(models.EVMMain, "0xabc", "0xabd"))
	assert.True(t, SameAddress(models.TronLike, "TAbc", "TAbc"))
	assert.False(t, SameAddress(models.TronLike, "TAbc", "Tabc"))
}
