package caption

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "bold span", in: "intro **My Title** outro", want: "My Title"},
		{name: "first bold wins", in: "**One** and **Two**", want: "One"},
		{name: "bold is trimmed", in: "**  Spaced  **", want: "Spaced"},
		{name: "bold beats pipe", in: "Category | **My Show** episode 1", want: "My Show"},
		{name: "blank bold falls through", in: "** ** | Show name", want: "Show name"},
		{name: "pipe", in: "Series | Episode _two_\nmore text", want: "Episode two"},
		{name: "pipe strips emphasis", in: "Cat | *Great* __show__", want: "Great show"},
		{name: "empty after pipe", in: "Heading line |", want: "Heading line |"},
		{name: "first long line", in: "ok\n\n# Season finale\nrest", want: "Season finale"},
		{name: "short lines fallback", in: "ab\ncd", want: "ab cd"},
		{name: "whitespace only", in: "   \n\t ", want: ""},
		{name: "unicode", in: "Título do vídeo\nsegunda", want: "Título do vídeo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle(tt.in))
		})
	}
}

func TestExtractTitle_PipeRule(t *testing.T) {
	assert.Equal(t, "My Show episode 1", titleAfterPipe("Category | **My Show** episode 1"))
	assert.Equal(t, "", titleAfterPipe("no pipe here"))
}

func TestExtractTitle_LongLinesCapped(t *testing.T) {
	long := strings.Repeat("é", 250)
	got := ExtractTitle(long)
	assert.Equal(t, 100, utf8.RuneCountInString(got))

	fallback := strings.Repeat("a ", 120)
	got = ExtractTitle("x\n" + fallback)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 100)
}

func TestExtractTitle_Total(t *testing.T) {
	inputs := []string{
		"**", "****", "|", "||", "*\n*", "__", "#", "\n\n\n", "**unclosed", "a|b|c", "\x00\xff",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = ExtractTitle(in) }, in)
	}
}
