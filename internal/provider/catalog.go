package provider

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

type Vendor string

const (
	VendorClaude Vendor = "claude"
	VendorGemini Vendor = "gemini"
)

//go:embed models.yaml
var defaultModels []byte

type Model struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	MaxTokens   int    `yaml:"max_tokens" json:"maxTokens"`
	Provider    Vendor `yaml:"provider" json:"provider"`
}

// Catalog lists the selectable models in display order.
type Catalog struct {
	models []Model
	byID   map[string]Model
}

type catalogFile struct {
	Models []Model `yaml:"models"`
}

// DefaultCatalog returns the built-in model list.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultModels)
	if err != nil {
		panic(fmt.Sprintf("built-in model catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file, falling back to the built-in list when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing model catalog: %w", err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}

	c := &Catalog{
		models: make([]Model, 0, len(f.Models)),
		byID:   make(map[string]Model, len(f.Models)),
	}
	for i, m := range f.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("model %d has no id", i)
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("model %q listed twice", m.ID)
		}
		if m.Provider == "" {
			m.Provider = inferProvider(m.ID)
		}
		if m.Provider != VendorClaude && m.Provider != VendorGemini {
			return nil, fmt.Errorf("model %q has unknown provider %q", m.ID, m.Provider)
		}
		c.models = append(c.models, m)
		c.byID[m.ID] = m
	}
	return c, nil
}

func (c *Catalog) Models() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) Lookup(id string) (Model, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// ProviderFor resolves the provider of a model id. Unlisted ids are routed
// by prefix: gemini* to Gemini, everything else to Claude.
func (c *Catalog) ProviderFor(id string) Vendor {
	if m, ok := c.byID[id]; ok {
		return m.Provider
	}
	return inferProvider(id)
}

func inferProvider(id string) Vendor {
	if strings.HasPrefix(id, "gemini") {
		return VendorGemini
	}
	return VendorClaude
}
