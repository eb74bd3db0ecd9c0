// Package kv parses the KEY=VALUE pairs used by the CLI to set free-form metadata.
package kv

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var keyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ParseSpecs parses KEY=VALUE specs into a map. Values are decoded as YAML
// scalars so `retries=3` is a number and `dry_run=true` a bool. Later specs
// override earlier ones.
func ParseSpecs(specs []string) (map[string]any, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	m := make(map[string]any, len(specs))
	for _, spec := range specs {
		key, raw, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid spec %q, must be KEY=VALUE", spec)
		}
		if !keyRegexp.MatchString(key) {
			return nil, fmt.Errorf("invalid key %q", key)
		}

		m[key] = parseValue(raw)
	}

	return m, nil
}

func parseValue(raw string) any {
	if raw == "" {
		return ""
	}

	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}

	// Only scalars are decoded, anything else is kept as the raw string.
	switch v.(type) {
	case bool, int, float64, string:
		return v
	default:
		return raw
	}
}
