package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownPersona is returned when a persona key is not registered.
var ErrUnknownPersona = errors.New("unknown persona")

// Persona captures the role-playing attributes of a character.
type Persona struct {
	Key          string `yaml:"key" json:"key"`
	Display      string `yaml:"display" json:"display"`
	SystemPrompt string `yaml:"system" json:"-"`
}

// Summary is the public view returned by the character listing.
type Summary struct {
	Key     string `json:"key"`
	Display string `json:"display"`
}

// Summary strips the system prompt.
func (p Persona) Summary() Summary {
	return Summary{Key: p.Key, Display: p.Display}
}

//go:embed personas.yaml
var seedYAML []byte

type document struct {
	Default  string    `yaml:"default"`
	Personas []Persona `yaml:"personas"`
}

// Seed returns the built-in personas and the default key.
func Seed() ([]Persona, string) {
	items, def, err := Parse(seedYAML)
	if err != nil {
		// embedded data is validated by tests
		panic(fmt.Sprintf("persona: invalid embedded personas: %v", err))
	}
	return items, def
}

// Parse decodes and validates a persona document.
func Parse(data []byte) ([]Persona, string, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("decode personas: %w", err)
	}

	if len(doc.Personas) == 0 {
		return nil, "", errors.New("no personas defined")
	}

	seen := make(map[string]struct{}, len(doc.Personas))
	for i := range doc.Personas {
		p := &doc.Personas[i]
		p.Key = strings.TrimSpace(p.Key)
		p.Display = strings.TrimSpace(p.Display)
		p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)

		if p.Key == "" {
			return nil, "", fmt.Errorf("persona #%d: key is required", i)
		}
		if _, dup := seen[p.Key]; dup {
			return nil, "", fmt.Errorf("persona %q: duplicate key", p.Key)
		}
		if p.SystemPrompt == "" {
			return nil, "", fmt.Errorf("persona %q: system prompt is required", p.Key)
		}
		if p.Display == "" {
			p.Display = p.Key
		}
		seen[p.Key] = struct{}{}
	}

	def := strings.TrimSpace(doc.Default)
	if def == "" {
		def = doc.Personas[0].Key
	}
	if _, ok := seen[def]; !ok {
		return nil, "", fmt.Errorf("default persona %q: %w", def, ErrUnknownPersona)
	}

	return doc.Personas, def, nil
}

// LoadFile reads a persona document from disk.
func LoadFile(path string) ([]Persona, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read personas file: %w", err)
	}
	return Parse(data)
}
