// Package i18n loads localized notification templates from embedded YAML
// catalogs and resolves them with language matching.
package i18n

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Template is a localized notification title/body pair. Both fields may
// contain {{key}} placeholders substituted at render time.
type Template struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// Catalog is an immutable locale → rule type → template lookup, built once
// at startup and injected into the content resolver.
type Catalog struct {
	locales map[string]map[string]Template
	tags    []language.Tag
	names   []string
	matcher language.Matcher
}

// Load parses all embedded locale catalogs.
func Load() (*Catalog, error) {
	files, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}

	c := &Catalog{locales: make(map[string]map[string]Template)}
	for _, f := range files {
		name := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read locale file %s: %w", f.Name(), err)
		}
		var templates map[string]Template
		if err := yaml.Unmarshal(data, &templates); err != nil {
			return nil, fmt.Errorf("failed to parse locale file %s: %w", f.Name(), err)
		}
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("invalid locale file name %s: %w", f.Name(), err)
		}
		c.locales[name] = templates
		c.tags = append(c.tags, tag)
		c.names = append(c.names, name)
	}
	if len(c.tags) == 0 {
		return nil, fmt.Errorf("no locale catalogs embedded")
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Locales returns the names of all loaded locales.
func (c *Catalog) Locales() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Lookup returns the template for the rule type in the closest matching
// locale. The second return is false when the locale cannot be matched at
// all or the matched catalog has no entry for the rule type.
func (c *Catalog) Lookup(locale, ruleType string) (Template, bool) {
	// Exact catalog name match first, cheap and unambiguous.
	if templates, ok := c.locales[locale]; ok {
		tmpl, ok := templates[ruleType]
		return tmpl, ok
	}

	desired, err := language.Parse(locale)
	if err != nil {
		return Template{}, false
	}
	_, idx, conf := c.matcher.Match(desired)
	if conf == language.No {
		return Template{}, false
	}
	tmpl, ok := c.locales[c.names[idx]][ruleType]
	return tmpl, ok
}
