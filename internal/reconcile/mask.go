package reconcile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/billrecon/internal/domain"
	"gopkg.in/yaml.v3"
)

// Mask is the set of records flagged for write-off, identified by their
// de-duplication keys. It is curated by hand per batch.
type Mask struct {
	keys map[domain.DedupKey]bool
}

// NewMask builds a mask from keys.
func NewMask(keys ...domain.DedupKey) Mask {
	m := Mask{keys: make(map[domain.DedupKey]bool, len(keys))}
	for _, k := range keys {
		m.keys[k] = true
	}
	return m
}

// Has reports whether key is flagged.
func (m Mask) Has(key domain.DedupKey) bool {
	return m.keys[key]
}

// Len is the number of flagged keys.
func (m Mask) Len() int {
	return len(m.keys)
}

type maskFile struct {
	Keys []string `yaml:"keys"`
}

// LoadMask reads a mask file. Files ending in .yaml or .yml hold a `keys`
// list; anything else is one key per line with # comments.
func LoadMask(path string) (Mask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Mask{}, fmt.Errorf("LoadMask: failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseMaskYAML(data)
	}
	return ParseMaskText(data), nil
}

// ParseMaskYAML parses the YAML mask form.
func ParseMaskYAML(data []byte) (Mask, error) {
	var f maskFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Mask{}, fmt.Errorf("ParseMaskYAML: %w", err)
	}
	keys := make([]domain.DedupKey, 0, len(f.Keys))
	for _, k := range f.Keys {
		keys = append(keys, domain.DedupKey(strings.TrimSpace(k)))
	}
	return NewMask(keys...), nil
}

// ParseMaskText parses the line-oriented mask form.
func ParseMaskText(data []byte) Mask {
	var keys []domain.DedupKey
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, domain.DedupKey(line))
	}
	return NewMask(keys...)
}
