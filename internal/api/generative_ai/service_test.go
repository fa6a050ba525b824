package generativeAI

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/config"
)

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, CleanJSON(`  {"a":1}  `))
}

func TestNewAIClient_WithoutKey(t *testing.T) {
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	_, err := NewAIClient(context.Background(), config.GenerationConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
