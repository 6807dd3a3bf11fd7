package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	record, err := parseRecord(`{"title":"Sunset","description":"A sunset","keywords":["sky","orange"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Sunset", record.Title)
	assert.Equal(t, "A sunset", record.Description)
	assert.Equal(t, []string{"sky", "orange"}, record.Keywords)
}

func TestParseRecord_StripsMarkdownFences(t *testing.T) {
	record, err := parseRecord("```json\n{\"title\":\"Sunset\",\"description\":\"A sunset\",\"keywords\":[\"sky\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Sunset", record.Title)
}

func TestParseRecord_Failures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty text", ""},
		{"whitespace only", "   \n"},
		{"not json", "I cannot analyze this image."},
		{"missing title", `{"description":"A sunset","keywords":["sky"]}`},
		{"missing keywords", `{"title":"Sunset","description":"A sunset"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRecord(tt.text)
			require.Error(t, err)

			var genErr *GenerationError
			assert.ErrorAs(t, err, &genErr)
		})
	}
}

func TestNewGeminiGenerator_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), "")
	assert.Error(t, err)
}
