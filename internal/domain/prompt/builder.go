package prompt

import (
	"fmt"
	"strings"

	"github.com/matiasleandrokruk/codeassist/internal/infra/llm"
)

const (
	// MaxFiles is how many file records a multi-file prompt includes.
	MaxFiles = 10
	// MaxFileChars caps each included file body.
	MaxFileChars = 2000
	// UnknownPath labels files submitted without a path.
	UnknownPath = "Unknown"
)

// Prompt is a rendered system/human pair.
type Prompt struct {
	System string
	Human  string
}

// Messages returns the pair as chat messages.
func (p Prompt) Messages() []llm.Message {
	return []llm.Message{
		{Role: "system", Content: p.System},
		{Role: "user", Content: p.Human},
	}
}

// File is one record of a multi-file analysis.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Builder renders prompts from a catalog.
type Builder struct {
	catalog *Catalog
}

func NewBuilder(c *Catalog) *Builder {
	return &Builder{catalog: c}
}

// Build renders the pair for kind with code substituted. Kinds absent from
// the catalog use the general entry.
func (b *Builder) Build(kind Kind, code string) Prompt {
	t, ok := b.catalog.Analysis[kind]
	if !ok {
		t = b.catalog.Analysis[General]
	}
	return Prompt{
		System: t.System,
		Human:  strings.Replace(t.Human, CodePlaceholder, code, 1),
	}
}

// BuildFiles renders the multi-file prompt from the first MaxFiles records,
// each body capped at MaxFileChars.
func (b *Builder) BuildFiles(files []File) Prompt {
	var sb strings.Builder
	for i, f := range files[:min(len(files), MaxFiles)] {
		path := f.Path
		if path == "" {
			path = UnknownPath
		}
		fmt.Fprintf(&sb, "\n--- File %d: %s ---\n", i+1, path)
		sb.WriteString(head(f.Content, MaxFileChars))
		sb.WriteString("\n")
	}
	t := b.catalog.Files
	return Prompt{
		System: t.System,
		Human:  strings.Replace(t.Human, FilesPlaceholder, sb.String(), 1),
	}
}

// BuildChat renders a follow-up question preceded by a context block, which
// may be empty.
func (b *Builder) BuildChat(contextBlock, message string) Prompt {
	t := b.catalog.Chat
	r := strings.NewReplacer(ContextPlaceholder, contextBlock, MessagePlaceholder, message)
	return Prompt{System: t.System, Human: r.Replace(t.Human)}
}

// ConnectionTest returns the fixed connectivity probe.
func (b *Builder) ConnectionTest() Prompt {
	return Prompt{System: b.catalog.ConnectionTest.System, Human: b.catalog.ConnectionTest.Human}
}

// head returns at most n characters of s.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
