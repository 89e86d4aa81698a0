package diff

import "fmt"

// Config controls what the comparison looks at. Exactly four options are
// recognized; the YAML loader rejects anything else so a typo never
// silently widens or narrows a comparison.
type Config struct {
	// IgnoreKeys are field names stripped from comparison wherever they
	// appear, at any nesting depth (volatile remarks, ordinal-position
	// artifacts).
	IgnoreKeys []string `yaml:"ignore_keys" json:"ignore_keys,omitempty"`

	// IgnoreSections are top-level sections excluded entirely.
	IgnoreSections []string `yaml:"ignore_sections" json:"ignore_sections,omitempty"`

	// NormalizeSQLKeys are field names whose string values are passed
	// through SQL-text normalization before comparison (view bodies,
	// function bodies, trigger actions).
	NormalizeSQLKeys []string `yaml:"normalize_sql_keys" json:"normalize_sql_keys,omitempty"`

	// IncludeRootKeys restricts comparison to the named top-level
	// sections. Empty means all sections.
	IncludeRootKeys []string `yaml:"include_root_keys" json:"include_root_keys,omitempty"`
}

// ConfigError reports conflicting comparison options. It is raised at
// configuration-build time, never mid-comparison.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("comparison config: field %q %s", e.Field, e.Reason)
}

// Validate checks the Config for conflicts: a field cannot be both
// ignored and SQL-normalized.
func (c Config) Validate() error {
	ignored := make(map[string]bool, len(c.IgnoreKeys))
	for _, k := range c.IgnoreKeys {
		ignored[k] = true
	}
	for _, k := range c.NormalizeSQLKeys {
		if ignored[k] {
			return &ConfigError{Field: k, Reason: "listed in both ignore_keys and normalize_sql_keys"}
		}
	}
	return nil
}

// ruleset is the compiled, set-based form of a Config.
type ruleset struct {
	ignore  map[string]bool
	sqlKeys map[string]bool
	skip    map[string]bool
	include map[string]bool
}

func (c Config) compile() (*ruleset, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	r := &ruleset{
		ignore:  make(map[string]bool, len(c.IgnoreKeys)),
		sqlKeys: make(map[string]bool, len(c.NormalizeSQLKeys)),
		skip:    make(map[string]bool, len(c.IgnoreSections)),
	}
	for _, k := range c.IgnoreKeys {
		r.ignore[k] = true
	}
	for _, k := range c.NormalizeSQLKeys {
		r.sqlKeys[k] = true
	}
	for _, k := range c.IgnoreSections {
		r.skip[k] = true
	}
	if len(c.IncludeRootKeys) > 0 {
		r.include = make(map[string]bool, len(c.IncludeRootKeys))
		for _, k := range c.IncludeRootKeys {
			r.include[k] = true
		}
	}
	return r, nil
}

// sectionWanted reports whether a top-level section takes part in the
// comparison.
func (r *ruleset) sectionWanted(name string) bool {
	if r.skip[name] {
		return false
	}
	if r.include != nil && !r.include[name] {
		return false
	}
	return true
}
