package internal

import (
	"sort"
	"strings"
)

// ExpandDocumentPlaceholders replaces every @title of docs with
// "<title> {{content}}</title>". Longer titles win over titles that are their prefix.
// docs must hold only documents whose content is known; empty content still expands.
func ExpandDocumentPlaceholders(text string, docs []Document) string {
	candidates := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.Title == "" {
			continue
		}
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		return text
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].Title) > len(candidates[j].Title)
	})

	pairs := make([]string, 0, 2*len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, d := range candidates {
		if seen[d.Title] {
			continue
		}
		seen[d.Title] = true
		pairs = append(pairs, "@"+d.Title, documentBlock(d.Title, d.Content))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func documentBlock(title, content string) string {
	return "<" + title + "> {{" + content + "}}</" + title + ">"
}

// FormatMessageContent turns "<title> {{content}}</title>" blocks back into @title
func FormatMessageContent(text string) string {
	if !strings.Contains(text, "> {{") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	i := 0
	for i < len(text) {
		start := strings.IndexByte(text[i:], '<')
		if start < 0 {
			b.WriteString(text[i:])
			break
		}
		start += i
		b.WriteString(text[i:start])

		if title, end, ok := matchDocumentBlock(text, start); ok {
			b.WriteString("@" + title)
			i = end
			continue
		}
		b.WriteByte('<')
		i = start + 1
	}
	return b.String()
}

// matchDocumentBlock matches a block opening at text[start] and returns its title and end offset
func matchDocumentBlock(text string, start int) (string, int, bool) {
	const opener = "> {{"
	body := text[start+1:]
	gt := strings.Index(body, opener)
	if gt <= 0 {
		return "", 0, false
	}
	title := body[:gt]
	if strings.ContainsAny(title, "<>\n") {
		return "", 0, false
	}

	contentStart := start + 1 + gt + len(opener)
	closing := "}}</" + title + ">"
	idx := strings.Index(text[contentStart:], closing)
	if idx < 0 {
		return "", 0, false
	}
	return title, contentStart + idx + len(closing), true
}

// ReferencedDocuments returns the documents whose @title occurs in text
func ReferencedDocuments(text string, docs []Document) []Document {
	var refs []Document
	for _, d := range docs {
		if d.Title != "" && strings.Contains(text, "@"+d.Title) {
			refs = append(refs, d)
		}
	}
	return refs
}

// Composer holds the input text and caret position, counted in runes
type Composer struct {
	text  []rune
	caret int
}

// NewComposer creates an empty composer
func NewComposer() *Composer {
	return &Composer{}
}

// Text returns the current input
func (c *Composer) Text() string {
	return string(c.text)
}

// Caret returns the caret position
func (c *Composer) Caret() int {
	return c.caret
}

// SetText replaces the input and moves the caret to its end
func (c *Composer) SetText(s string) {
	c.text = []rune(s)
	c.caret = len(c.text)
}

// SetCaret moves the caret, clamped to the text
func (c *Composer) SetCaret(pos int) {
	switch {
	case pos < 0:
		pos = 0
	case pos > len(c.text):
		pos = len(c.text)
	}
	c.caret = pos
}

// InsertAtCaret inserts s at the caret and moves the caret after it
func (c *Composer) InsertAtCaret(s string) {
	ins := []rune(s)
	next := make([]rune, 0, len(c.text)+len(ins))
	next = append(next, c.text[:c.caret]...)
	next = append(next, ins...)
	next = append(next, c.text[c.caret:]...)
	c.text = next
	c.caret += len(ins)
}

// InsertDocument inserts "@title " at the caret. An "@" typed just before the caret
// (the picker trigger) is reused.
func (c *Composer) InsertDocument(title string) {
	if c.caret > 0 && c.text[c.caret-1] == '@' {
		c.InsertAtCaret(title + " ")
		return
	}
	c.InsertAtCaret("@" + title + " ")
}

// Clear empties the input
func (c *Composer) Clear() {
	c.text = nil
	c.caret = 0
}
