// Package prompt renders system/human prompt pairs from a YAML catalog keyed
// by analysis kind.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Substitution points in the catalog templates.
const (
	CodePlaceholder    = "{code}"
	FilesPlaceholder   = "{files}"
	ContextPlaceholder = "{context}"
	MessagePlaceholder = "{message}"
)

//go:embed prompts.yaml
var defaultCatalog []byte

// ErrInvalidCatalog is returned when a catalog is missing entries or placeholders.
var ErrInvalidCatalog = errors.New("invalid prompt catalog")

// Template is one system/human pair.
type Template struct {
	System string `yaml:"system"`
	Human  string `yaml:"human"`
}

// Catalog is the parsed prompts file.
type Catalog struct {
	Analysis       map[Kind]Template `yaml:"analysis"`
	Files          Template          `yaml:"files"`
	Chat           Template          `yaml:"chat"`
	ConnectionTest Template          `yaml:"connection_test"`
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog from path, or the embedded one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates YAML catalog data.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every analysis kind has an entry with exactly one
// {code} placeholder and that the auxiliary templates carry theirs.
func (c *Catalog) Validate() error {
	for _, k := range Kinds() {
		t, ok := c.Analysis[k]
		if !ok {
			return fmt.Errorf("%w: missing analysis kind %q", ErrInvalidCatalog, k)
		}
		if t.System == "" {
			return fmt.Errorf("%w: %s: empty system instruction", ErrInvalidCatalog, k)
		}
		if n := strings.Count(t.Human, CodePlaceholder); n != 1 {
			return fmt.Errorf("%w: %s: human template has %d %s placeholders", ErrInvalidCatalog, k, n, CodePlaceholder)
		}
	}
	if !strings.Contains(c.Files.Human, FilesPlaceholder) {
		return fmt.Errorf("%w: files template lacks %s", ErrInvalidCatalog, FilesPlaceholder)
	}
	if !strings.Contains(c.Chat.Human, MessagePlaceholder) {
		return fmt.Errorf("%w: chat template lacks %s", ErrInvalidCatalog, MessagePlaceholder)
	}
	if c.ConnectionTest.Human == "" {
		return fmt.Errorf("%w: empty connection test prompt", ErrInvalidCatalog)
	}
	return nil
}
