package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketExtractor_Extract(t *testing.T) {
	extractor, err := NewTicketExtractor("")
	require.NoError(t, err)

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "conventional commit", title: "fix(ACME-7): null check", want: "ACME-7"},
		{name: "conventional wins over brackets", title: "[ACME-1] feat(ACME-2): add cart", want: "ACME-2"},
		{name: "brackets", title: "Add cart [SHOP-12]", want: "SHOP-12"},
		{name: "prefix with colon", title: "OPS-3: rotate keys", want: "OPS-3"},
		{name: "parentheses", title: "Rotate keys (OPS-4)", want: "OPS-4"},
		{name: "prefix with space", title: "OPS-5 rotate keys", want: "OPS-5"},
		{name: "unknown commit type", title: "perf(ACME-9) faster", want: "ACME-9"},
		{name: "lowercase key ignored", title: "acme-1: nope", want: ""},
		{name: "no key", title: "Refactor the thing", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractor.Extract(tt.title))
		})
	}
}

func TestTicketExtractor_CustomPattern(t *testing.T) {
	t.Run("success - custom key pattern", func(t *testing.T) {
		// arrange
		extractor, err := NewTicketExtractor(`[A-Z][A-Z0-9]+-\d+`)
		require.NoError(t, err)

		// act
		got := extractor.Extract("[AB2-10] support digits")

		// assert
		assert.Equal(t, "AB2-10", got)
		assert.True(t, extractor.Valid("AB2-10"))
		assert.False(t, extractor.Valid("AB2-10 extra"))
	})
	t.Run("failure - invalid pattern", func(t *testing.T) {
		_, err := NewTicketExtractor(`[A-Z`)

		assert.Error(t, err)
	})
}
