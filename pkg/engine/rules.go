package engine

import (
	"bytes"
	_ "embed"
	"fmt"
	"regexp"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed rules/catalog.yaml
var defaultCatalog []byte

// Rule is a single static detection rule from the catalog
type Rule struct {
	ID             string     `yaml:"id"`
	Analyzer       string     `yaml:"analyzer"`
	Title          string     `yaml:"title"`
	Description    string     `yaml:"description"`
	Category       string     `yaml:"category"`
	Severity       Severity   `yaml:"severity"`
	Impact         string     `yaml:"impact"`
	Recommendation string     `yaml:"recommendation"`
	Patterns       []string   `yaml:"patterns"`
	Absent         string     `yaml:"absent"`
	Compliance     Compliance `yaml:"compliance"`

	patterns []*regexp.Regexp
	absent   *regexp.Regexp
}

// VulnerablePackage is a package whose versions below Floor are flagged
type VulnerablePackage struct {
	Name     string `yaml:"name"`
	Floor    string `yaml:"floor"`
	Advisory string `yaml:"advisory"`
}

// Catalog is the immutable rule table shared by all analyzers
type Catalog struct {
	Version            int                 `yaml:"version"`
	VulnerablePackages []VulnerablePackage `yaml:"vulnerable_packages"`
	SecurityPackages   []string            `yaml:"security_packages"`
	Rules              []Rule              `yaml:"rules"`

	byID map[string]*Rule
}

var (
	catalogOnce sync.Once
	catalog     *Catalog
	catalogErr  error
)

// DefaultCatalog parses the embedded catalog once per process
func DefaultCatalog() (*Catalog, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = ParseCatalog(defaultCatalog)
	})
	return catalog, catalogErr
}

// MustDefaultCatalog panics if the embedded catalog is broken
func MustDefaultCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog decodes and validates a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse rule catalog: %w", err)
	}
	c.byID = make(map[string]*Rule, len(c.Rules))
	for i := range c.Rules {
		r := &c.Rules[i]
		if r.ID == "" {
			return nil, fmt.Errorf("rule #%d has no id", i)
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id: %s", r.ID)
		}
		if !r.Severity.Valid() {
			return nil, fmt.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
		}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("rule %s: bad pattern %q: %w", r.ID, p, err)
			}
			r.patterns = append(r.patterns, re)
		}
		if r.Absent != "" {
			re, err := regexp.Compile(r.Absent)
			if err != nil {
				return nil, fmt.Errorf("rule %s: bad absent pattern %q: %w", r.ID, r.Absent, err)
			}
			r.absent = re
		}
		c.byID[r.ID] = r
	}
	return &c, nil
}

// Rule looks up a rule by ID
func (c *Catalog) Rule(id string) (*Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// RulesFor returns the rules of one analyzer in catalog order
func (c *Catalog) RulesFor(analyzer string) []*Rule {
	var out []*Rule
	for i := range c.Rules {
		if c.Rules[i].Analyzer == analyzer {
			out = append(out, &c.Rules[i])
		}
	}
	return out
}

// Matches returns the patterns that fire on content, honoring the absent guard
func (r *Rule) Matches(content []byte) []*regexp.Regexp {
	if r.absent != nil && r.absent.Match(content) {
		return nil
	}
	var hits []*regexp.Regexp
	for _, re := range r.patterns {
		if re.Match(content) {
			hits = append(hits, re)
		}
	}
	return hits
}

// Render builds a finding from the rule, expanding {{.Var}} placeholders
func (r *Rule) Render(affected string, vars map[string]string) (Finding, error) {
	title, err := renderString(r.ID+".title", r.Title, vars)
	if err != nil {
		return Finding{}, err
	}
	desc, err := renderString(r.ID+".description", r.Description, vars)
	if err != nil {
		return Finding{}, err
	}
	impact, err := renderString(r.ID+".impact", r.Impact, vars)
	if err != nil {
		return Finding{}, err
	}
	rec, err := renderString(r.ID+".recommendation", r.Recommendation, vars)
	if err != nil {
		return Finding{}, err
	}
	return Finding{
		RuleID:              r.ID,
		Title:               title,
		Description:         desc,
		OWASPCategory:       r.Category,
		Severity:            r.Severity,
		Impact:              impact,
		Recommendation:      rec,
		AffectedFileOrRoute: affected,
		Compliance:          r.Compliance,
	}, nil
}

func renderString(name, tmplStr string, vars map[string]string) (string, error) {
	if vars == nil {
		return tmplStr, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %v", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %v", name, err)
	}
	return buf.String(), nil
}
