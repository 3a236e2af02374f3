// Package category assigns spending categories with ordered keyword rules.
package category

import (
	"fmt"
	"os"
	"regexp"

	"github.com/dvloznov/billrecon/internal/domain"
	"gopkg.in/yaml.v3"
)

// Built-in category names.
const (
	Shopping  = "Shopping"
	Transport = "Transport"
	Telecom   = "Telecom"
	Salary    = "Salary"
	Dining    = "Dining"
)

// Rule assigns Category when Pattern matches the counterparty or description.
type Rule struct {
	Category string `yaml:"category"`
	Pattern  string `yaml:"pattern"`
}

// DefaultRules is the built-in rule order. Earlier rules win.
var DefaultRules = []Rule{
	{Category: Shopping, Pattern: `平台商户|抖音电商商家|快递`},
	{Category: Transport, Pattern: `出行|加油|停车|中铁|12306`},
	{Category: Telecom, Pattern: `联通`},
	{Category: Salary, Pattern: `工资`},
}

type compiledRule struct {
	category string
	re       *regexp.Regexp
}

// Classifier applies an ordered rule list. It is immutable and safe for
// concurrent use.
type Classifier struct {
	rules    []compiledRule
	fallback string
}

// New compiles rules. An empty fallback defaults to Dining.
func New(rules []Rule, fallback string) (*Classifier, error) {
	if fallback == "" {
		fallback = Dining
	}
	c := &Classifier{fallback: fallback}
	for i, r := range rules {
		if r.Category == "" {
			return nil, fmt.Errorf("New: rule %d has no category", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("New: rule %d (%s): %w", i, r.Category, err)
		}
		c.rules = append(c.rules, compiledRule{category: r.Category, re: re})
	}
	return c, nil
}

// Default returns a classifier with DefaultRules.
func Default() *Classifier {
	c, err := New(DefaultRules, Dining)
	if err != nil {
		panic(err)
	}
	return c
}

// Category returns the first matching rule's category, or the fallback.
func (c *Classifier) Category(t domain.Transaction) string {
	text := t.Counterparty + " " + t.Description
	for _, r := range c.rules {
		if r.re.MatchString(text) {
			return r.category
		}
	}
	return c.fallback
}

// Classify returns a copy of txs with Category set.
func (c *Classifier) Classify(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, t := range txs {
		t.Category = c.Category(t)
		out[i] = t
	}
	return out
}

type rulesFile struct {
	Fallback string `yaml:"fallback"`
	Rules    []Rule `yaml:"rules"`
}

// LoadFile reads an ordered rule list from YAML:
//
//	fallback: Dining
//	rules:
//	  - {category: Shopping, pattern: "快递|超市"}
func LoadFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: failed to read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses YAML rules.
func Load(data []byte) (*Classifier, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("Load: failed to parse rules: %w", err)
	}
	return New(f.Rules, f.Fallback)
}
