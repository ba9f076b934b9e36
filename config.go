package llama

import (
	"fmt"
	"io/ioutil"
	"sort"

	"gopkg.in/yaml.v2"
)

// TargetConfig is the on-disk target configuration: a flat mapping of
// IPv4 literal to an arbitrary set of tags, forwarded verbatim to the
// TSDB. Unknown tag names are permitted.
type TargetConfig map[string]map[string]string

// LoadTargetConfig reads and parses a target configuration file, returning
// an error if the file can't be read, isn't valid YAML, or any key isn't a
// valid IPv4 dotted-quad.
func LoadTargetConfig(path string) (TargetConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("llama: reading config %s: %w", path, err)
	}
	return ParseTargetConfig(data)
}

// ParseTargetConfig parses target configuration from in-memory YAML data.
func ParseTargetConfig(data []byte) (TargetConfig, error) {
	cfg := make(TargetConfig)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("llama: parsing config: %w", err)
	}
	for addr := range cfg {
		if err := ValidateIPv4(addr); err != nil {
			return nil, fmt.Errorf("llama: invalid target in config: %w", err)
		}
	}
	return cfg, nil
}

// Targets converts the configuration into the Target slice Collection
// expects, sorted by address for a stable, reproducible snapshot order.
func (tc TargetConfig) Targets() []Target {
	targets := make([]Target, 0, len(tc))
	for addr, tags := range tc {
		t := Target{Address: addr, Tags: make(Tags, len(tags))}
		for k, v := range tags {
			t.Tags[k] = v
		}
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Address < targets[j].Address })
	return targets
}
