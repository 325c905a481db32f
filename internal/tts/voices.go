package tts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Accent is a named Google domain used to select a regional accent.
type Accent struct {
	Name string `yaml:"name" json:"name"`
	TLD  string `yaml:"tld" json:"tld"`
}

// Catalogue lists the voices and accents offered to users.
type Catalogue struct {
	OpenAIVoices []string `yaml:"openai_voices" json:"openai_voices"`
	GTTSAccents  []Accent `yaml:"gtts_accents" json:"gtts_accents"`
	Genders      []string `yaml:"genders" json:"genders"`
}

// DefaultCatalogue returns the built-in voice catalogue.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		OpenAIVoices: []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		GTTSAccents: []Accent{
			{Name: "US English", TLD: "com"},
			{Name: "UK English", TLD: "co.uk"},
			{Name: "Australian English", TLD: "com.au"},
			{Name: "Indian English", TLD: "co.in"},
			{Name: "Canadian English", TLD: "ca"},
		},
		Genders: []string{"female", "male"},
	}
}

// LoadCatalogue reads a YAML catalogue from path. Sections missing from the
// file keep their built-in values. An empty path returns the defaults.
func LoadCatalogue(path string) (Catalogue, error) {
	cat := DefaultCatalogue()
	if path == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cat, fmt.Errorf("reading voice catalogue: %w", err)
	}
	var override Catalogue
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cat, fmt.Errorf("parsing voice catalogue: %w", err)
	}
	if len(override.OpenAIVoices) > 0 {
		cat.OpenAIVoices = override.OpenAIVoices
	}
	if len(override.GTTSAccents) > 0 {
		cat.GTTSAccents = override.GTTSAccents
	}
	if len(override.Genders) > 0 {
		cat.Genders = override.Genders
	}
	return cat, nil
}

// AccentTLD resolves an accent name or a bare TLD to a TLD. Unknown names are
// returned unchanged so callers may pass any Google domain suffix.
func (c Catalogue) AccentTLD(nameOrTLD string) string {
	for _, a := range c.GTTSAccents {
		if a.Name == nameOrTLD {
			return a.TLD
		}
	}
	return nameOrTLD
}
