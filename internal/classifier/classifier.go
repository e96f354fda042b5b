package classifier

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

// UnknownID is the id of the sentinel returned when nothing matches.
const UnknownID = "unknown"

//go:embed categories.yaml
var defaultTable []byte

type table struct {
	Categories []appeal.Category `yaml:"categories"`
	Unknown    appeal.Category   `yaml:"unknown"`
}

type entry struct {
	category appeal.Category
	patterns []*regexp.Regexp
}

// Registry maps ticket identifiers to categories. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	entries []entry
	byID    map[string]appeal.Category
	unknown appeal.Category
}

// Default builds the registry from the embedded category table.
func Default() (*Registry, error) {
	return Load(defaultTable)
}

// Load builds a registry from a YAML category table.
func Load(data []byte) (*Registry, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}
	if t.Unknown.ID == "" {
		t.Unknown.ID = UnknownID
	}

	r := &Registry{
		byID:    make(map[string]appeal.Category, len(t.Categories)+1),
		unknown: t.Unknown,
	}
	for _, c := range t.Categories {
		if c.ID == "" {
			return nil, fmt.Errorf("category with empty id")
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.ID)
		}
		e := entry{category: c}
		for _, p := range c.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("category %s pattern %q: %w", c.ID, p, err)
			}
			e.patterns = append(e.patterns, re)
		}
		r.entries = append(r.entries, e)
		r.byID[c.ID] = c
	}
	r.byID[r.unknown.ID] = r.unknown
	return r, nil
}

// Classify returns the first category whose patterns match the identifier,
// or the unknown sentinel. It never fails.
func (r *Registry) Classify(identifier string) appeal.Category {
	id := normalize(identifier)
	if id == "" {
		return r.unknown
	}
	for _, e := range r.entries {
		if e.matches(id) {
			return e.category
		}
	}
	return r.unknown
}

// Matches returns the ids of every category matching the identifier.
// A well-formed table yields at most one.
func (r *Registry) Matches(identifier string) []string {
	id := normalize(identifier)
	var ids []string
	for _, e := range r.entries {
		if e.matches(id) {
			ids = append(ids, e.category.ID)
		}
	}
	return ids
}

// Get looks up a category by id.
func (r *Registry) Get(id string) (appeal.Category, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Unknown returns the sentinel category.
func (r *Registry) Unknown() appeal.Category {
	return r.unknown
}

// Categories returns the table in match order, excluding the sentinel.
func (r *Registry) Categories() []appeal.Category {
	out := make([]appeal.Category, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.category
	}
	return out
}

func (e entry) matches(id string) bool {
	for _, re := range e.patterns {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}

// normalize trims and upper-cases; internal whitespace is kept so that
// structured identifiers are not merged into something else.
func normalize(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}
