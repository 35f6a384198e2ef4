package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "plain text unchanged",
			input:    "  A desert planet.  ",
			contains: []string{"A desert planet."},
		},
		{
			name:     "html converted to markdown",
			input:    "<p>Set on <b>Arrakis</b>.</p><p>Second paragraph.</p>",
			contains: []string{"**Arrakis**", "Second paragraph."},
			excludes: []string{"<p>", "<b>"},
		},
		{
			name:  "empty",
			input: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanDescription(tt.input)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
			assert.Equal(t, strings.TrimSpace(got), got)
		})
	}
}

func TestCleanDescription_Truncates(t *testing.T) {
	got := CleanDescription(strings.Repeat("é", maxDescriptionLength+50))
	assert.Equal(t, maxDescriptionLength, len([]rune(got)))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello world & friends", StripHTML("<div>Hello <i>world</i> &amp; friends</div>"))
	assert.Equal(t, "One Two", StripHTML("<p>One</p><p>Two</p>"))
	assert.Equal(t, "", StripHTML(""))
}
