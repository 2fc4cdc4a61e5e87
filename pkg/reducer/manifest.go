package reducer

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vjranagit/telemetry/pkg/storage"
)

//go:embed reducers.yaml
var builtinManifest []byte

// Deps are the collaborators reducer factories may use
type Deps struct {
	Store storage.Storage
}

// ManifestEntry is one reducer declared in a manifest
type ManifestEntry struct {
	Metadata `yaml:",inline"`
	Impl     string      `yaml:"impl"`
	Sensor   *SensorSpec `yaml:"sensor"`
}

// Factory creates a reducer implementation for a manifest entry
type Factory func(deps Deps, entry ManifestEntry) (Reducer, error)

type manifestYAML struct {
	Reducers []ManifestEntry `yaml:"reducers"`
}

// builtinFactories maps manifest impl keys to the built-in implementations
var builtinFactories = map[string]Factory{
	"sensor": func(deps Deps, entry ManifestEntry) (Reducer, error) {
		return newSensorReducer(entry.Name, deps.Store, entry.Sensor)
	},
}

// LoadRegistry builds a registry from a YAML manifest. Each entry's impl key selects a factory.
func LoadRegistry(manifest []byte, factories map[string]Factory, deps Deps) (*Registry, error) {
	var m manifestYAML
	if err := yaml.Unmarshal(manifest, &m); err != nil {
		return nil, fmt.Errorf("failed to parse reducer manifest: %w", err)
	}

	entries := make([]Entry, 0, len(m.Reducers))
	for _, re := range m.Reducers {
		factory, ok := factories[re.Impl]
		if !ok {
			return nil, fmt.Errorf("reducer %s: no implementation registered for %q", re.Name, re.Impl)
		}
		impl, err := factory(deps, re)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Metadata: re.Metadata, Impl: impl})
	}
	return NewRegistry(entries...)
}

// Builtin returns the registry of built-in sensor reducers reading from deps.Store
func Builtin(deps Deps) (*Registry, error) {
	return LoadRegistry(builtinManifest, builtinFactories, deps)
}
