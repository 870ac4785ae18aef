package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSetRatioExactMatch(t *testing.T) {
	assert.Equal(t, 100, TokenSetRatio("facebook.com", "facebook.com"))
}

func TestTokenSetRatioOrdering(t *testing.T) {
	facebook := TokenSetRatio("facebook", "facebook.com")
	fakebook := TokenSetRatio("facebook", "fakebook.com")
	example := TokenSetRatio("facebook", "example.com")

	assert.Greater(t, facebook, fakebook)
	assert.Greater(t, fakebook, example)
}

func TestTokenSetRatioEmpty(t *testing.T) {
	assert.Equal(t, 100, TokenSetRatio("", ""))
}
