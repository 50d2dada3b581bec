package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/japaniel/termbank/pkg/policy"
)

// Validate checks the loaded configuration and fills per-format defaults.
// Load calls it automatically.
func (c *Config) Validate() error {
	if c.Run.Workers < 1 {
		return fmt.Errorf("run.workers must be >= 1 (got %d)", c.Run.Workers)
	}
	if c.Run.ChunkSize < 1 {
		return fmt.Errorf("run.chunk_size must be >= 1 (got %d)", c.Run.ChunkSize)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json (got %q)", c.Log.Format)
	}

	for name, f := range c.Formats {
		if err := f.validate(); err != nil {
			return fmt.Errorf("dictionaries.%s: %w", name, err)
		}
		if f.Name == "" {
			f.Name = name
		}
		if f.Type == "" {
			f.Type = name
		}
		c.Formats[name] = f
	}
	return nil
}

func (f Format) validate() error {
	if err := checkName("link", f.Policies.Link, policy.Link); err != nil {
		return err
	}
	if err := checkName("image", f.Policies.Image, policy.Image); err != nil {
		return err
	}
	if err := checkName("normalization", f.Policies.Normalization, policy.Normalization); err != nil {
		return err
	}
	if err := checkName("pos", f.Policies.PartOfSpeech, policy.PartOfSpeech); err != nil {
		return err
	}
	if (f.ExampleItem == "") != (f.ExamplesBody == "") {
		return fmt.Errorf("examples_body and example_item must be set together")
	}
	return nil
}

func checkName[F any](kind, name string, registry map[string]F) error {
	if name == "" {
		return nil
	}
	if _, ok := registry[name]; ok {
		return nil
	}
	known := make([]string, 0, len(registry))
	for k := range registry {
		known = append(known, k)
	}
	sort.Strings(known)
	return fmt.Errorf("policies.%s: unknown policy %q (have %s)", kind, name, strings.Join(known, ", "))
}

// Names returns the configured format names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Formats))
	for name := range c.Formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format looks up a configured format by name.
func (c *Config) Format(name string) (Format, error) {
	f, ok := c.Formats[name]
	if !ok {
		return Format{}, fmt.Errorf("unknown dictionary %q (configured: %s)", name, strings.Join(c.Names(), ", "))
	}
	return f, nil
}
