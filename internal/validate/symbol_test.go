package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbol_Valid(t *testing.T) {
	for _, s := range []string{
		"A", "AAPL", "GOOGL", "BRK.A", "BF-B", "BRK.A-B", "aapl", "msft",
	} {
		assert.True(t, Symbol(s), "expected %q to be valid", s)
	}
}

func TestSymbol_Invalid(t *testing.T) {
	for _, s := range []string{
		"", "TOOLONG", "AAPL1", "123", "BRK.", "BRK..A", "-B", "AAPL ", "A B", "BRK.AB",
	} {
		assert.False(t, Symbol(s), "expected %q to be invalid", s)
	}
}
