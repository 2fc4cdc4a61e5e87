package function

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed functions.yaml
var builtinManifest []byte

// Factory creates a function implementation
type Factory func() Function

// manifestYAML is the root of a function manifest
type manifestYAML struct {
	Functions []manifestEntryYAML `yaml:"functions"`
}

type manifestEntryYAML struct {
	Metadata `yaml:",inline"`
	Impl     string `yaml:"impl"`
}

// builtinFactories maps manifest impl keys to the built-in implementations
var builtinFactories = map[string]Factory{
	"add":        func() Function { return arithmetic{op: add} },
	"sub":        func() Function { return arithmetic{op: sub} },
	"mul":        func() Function { return arithmetic{op: mul} },
	"div":        func() Function { return arithmetic{op: div} },
	"idempotent": func() Function { return idempotent{} },
	"filter":     func() Function { return filter{} },
}

// LoadRegistry builds a registry from a YAML manifest. Each entry's impl key selects a factory.
func LoadRegistry(manifest []byte, factories map[string]Factory) (*Registry, error) {
	var m manifestYAML
	if err := yaml.Unmarshal(manifest, &m); err != nil {
		return nil, fmt.Errorf("failed to parse function manifest: %w", err)
	}

	entries := make([]Entry, 0, len(m.Functions))
	for _, fe := range m.Functions {
		factory, ok := factories[fe.Impl]
		if !ok {
			return nil, fmt.Errorf("function %s: no implementation registered for %q", fe.Name, fe.Impl)
		}
		entries = append(entries, Entry{Metadata: fe.Metadata, Impl: factory()})
	}
	return NewRegistry(entries...)
}

// Builtin returns the registry of built-in functions
func Builtin() (*Registry, error) {
	return LoadRegistry(builtinManifest, builtinFactories)
}
