package prompts

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultYAML []byte

const schemaPlaceholder = "{{schema}}"

// Prompts holds the user-facing text the chat app is configured with.
type Prompts struct {
	Greeting      string   `yaml:"greeting"`
	Table         string   `yaml:"table"`
	Schema        string   `yaml:"schema"`
	System        string   `yaml:"system"`
	SampleQueries []string `yaml:"sample_queries"`
}

// Default returns the built-in prompts.
func Default() *Prompts {
	p := &Prompts{}
	if err := yaml.Unmarshal(defaultYAML, p); err != nil {
		panic(errors.Wrap(err, "embedded prompts.yaml"))
	}
	return p
}

// Load parses a prompts document. Fields missing from data keep their
// built-in values, so an override file only needs the keys it changes.
func Load(data []byte) (*Prompts, error) {
	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(err, "parse prompts")
	}
	if strings.TrimSpace(p.System) == "" {
		return nil, errors.New("prompts: system prompt is empty")
	}
	return p, nil
}

// LoadFile reads prompts from path; an empty path yields the defaults.
func LoadFile(path string) (*Prompts, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read prompts file %s", path)
	}
	return Load(data)
}

// SystemPrompt is the system instruction with the schema description inlined.
func (p *Prompts) SystemPrompt() string {
	return strings.ReplaceAll(p.System, schemaPlaceholder, strings.TrimRight(p.Schema, "\n"))
}
