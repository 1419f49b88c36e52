package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineWidthCountsCodePoints(t *testing.T) {
	assert.Equal(t, 0, LineWidth(""))
	assert.Equal(t, 5, LineWidth("x = 1"))
	assert.Equal(t, 3, LineWidth("héé"))
	assert.Equal(t, 2, LineWidth("日本"))
}

func TestFitsWidth(t *testing.T) {
	assert.True(t, FitsWidth([]string{"ab", "abc"}, 3))
	assert.False(t, FitsWidth([]string{"ab", "abcd"}, 3))
	assert.True(t, FitsWidth(nil, 3))
}

func TestFixRequestWidth(t *testing.T) {
	req := FixRequest{OriginalLine: strings.Repeat("a", 80)}
	assert.Equal(t, DefaultMaxWidth, req.Width())
	assert.True(t, req.NeedsFix())

	req.MaxWidth = 80
	assert.False(t, req.NeedsFix())
}

func TestLanguageFromPath(t *testing.T) {
	assert.Equal(t, "python", LanguageFromPath("pkg/mod.py"))
	assert.Equal(t, "go", LanguageFromPath("MAIN.GO"))
	assert.Equal(t, "", LanguageFromPath("Makefile"))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Generate ")
	assert.True(t, ok)
	assert.Equal(t, RoleGenerate, r)

	_, ok = ParseRole("oracle")
	assert.False(t, ok)
}
