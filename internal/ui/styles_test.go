package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestRenderTag_PreservesText(t *testing.T) {
	lipgloss.SetColorProfile(termenv.TrueColor)
	t.Cleanup(func() { lipgloss.SetColorProfile(termenv.Ascii) })

	for _, tag := range []string{TagReady, TagCopied, TagWouldCopy, TagSkip, TagInfo, TagError} {
		got := RenderTag(tag)
		assert.Contains(t, got, tag)
		assert.NotEqual(t, tag, got, "%s should be styled", tag)
	}
	assert.Equal(t, "[OTHER]", RenderTag("[OTHER]"))
}

func TestRenderTag_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	InitColor()
	t.Cleanup(func() { lipgloss.SetColorProfile(termenv.Ascii) })

	assert.Equal(t, TagReady, RenderTag(TagReady))
	assert.Equal(t, "PLANNING", RenderCategory("planning"))
}
