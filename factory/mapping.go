/*
Package factory provides YAML to Go mapping conversion.

PURPOSE:
  Converts YAML insurer-mapping documents into recon.InsurerFieldMapping
  values. This enables mapping configuration without code changes - an
  operations admin can describe a new insurer's upload dialect in YAML,
  and the factory creates the proper Go structs.

WHY YAML?
  - Non-developers can register insurers
  - Version control for mapping definitions
  - Database or directory storage of mapping configs

YAML SCHEMA:
  insurer: Acme General
  policy_key: policy_number
  columns:
    - source: "Policy No"
      field: policy_number
    - source: "Premium Amount"
      field: premium
      rule: numeric
    - source: "Start Date"
      field: start_date
      rule: date
      date_layout: "02/01/2006"

DEFAULTS:
  - policy_key defaults to policy_number
  - rule defaults to trim

USAGE:
  mapping, err := factory.ParseMapping(yamlBytes)

  // Or load a whole directory of *.yaml documents:
  store, err := factory.LoadMappingDir("./mappings")
  resolver := recon.NewResolver(store)

SEE ALSO:
  - recon/mapping.go: InsurerFieldMapping definition and invariants
  - recon/resolver.go: Per-insurer caching
*/
package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
	"github.com/HeshMedia/insurezeal-sub006/recon"
)

// DefaultPolicyKey is assumed when a document omits policy_key.
const DefaultPolicyKey = mastersheet.FieldID("policy_number")

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// MappingYAML is the YAML representation of an insurer field mapping.
type MappingYAML struct {
	Insurer   string       `yaml:"insurer"`
	PolicyKey string       `yaml:"policy_key,omitempty"`
	Columns   []ColumnYAML `yaml:"columns"`
}

// ColumnYAML represents one column translation.
type ColumnYAML struct {
	Source     string `yaml:"source"`
	Field      string `yaml:"field"`
	Rule       string `yaml:"rule,omitempty"`
	DateLayout string `yaml:"date_layout,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseMapping converts one YAML document into a validated mapping.
func ParseMapping(doc []byte) (recon.InsurerFieldMapping, error) {
	var raw MappingYAML
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return recon.InsurerFieldMapping{}, fmt.Errorf("parse mapping yaml: %w", err)
	}

	m := recon.InsurerFieldMapping{
		Insurer:   strings.TrimSpace(raw.Insurer),
		PolicyKey: DefaultPolicyKey,
	}
	if raw.PolicyKey != "" {
		m.PolicyKey = mastersheet.FieldID(raw.PolicyKey)
	}
	for _, c := range raw.Columns {
		rule := recon.Rule(c.Rule)
		if rule == "" {
			rule = recon.RuleTrim
		}
		m.Columns = append(m.Columns, recon.ColumnMapping{
			Source:     c.Source,
			Field:      mastersheet.FieldID(c.Field),
			Rule:       rule,
			DateLayout: c.DateLayout,
		})
	}
	if err := m.Validate(); err != nil {
		return recon.InsurerFieldMapping{}, err
	}
	return m, nil
}

// =============================================================================
// DIRECTORY STORE
// =============================================================================

// DirStore is a recon.MappingStore over mappings loaded from a directory
// of YAML documents, keyed by the insurer name inside each document.
type DirStore struct {
	mappings map[string]recon.InsurerFieldMapping
}

// LoadMappingDir reads every *.yaml / *.yml document under dir.
// Duplicate insurer names across files are an error.
func LoadMappingDir(dir string) (*DirStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read mapping dir: %w", err)
	}

	store := &DirStore{mappings: make(map[string]recon.InsurerFieldMapping)}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		doc, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read mapping %s: %w", e.Name(), err)
		}
		m, err := ParseMapping(doc)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", e.Name(), err)
		}
		if _, dup := store.mappings[m.Insurer]; dup {
			return nil, fmt.Errorf("mapping %s: insurer %q already defined", e.Name(), m.Insurer)
		}
		store.mappings[m.Insurer] = m
	}
	return store, nil
}

// GetMapping implements recon.MappingStore.
func (s *DirStore) GetMapping(_ context.Context, insurer string) (recon.InsurerFieldMapping, error) {
	m, ok := s.mappings[insurer]
	if !ok {
		return recon.InsurerFieldMapping{}, recon.ErrUnknownInsurer
	}
	return m, nil
}

// Insurers lists the registered insurer names.
func (s *DirStore) Insurers() []string {
	out := make([]string, 0, len(s.mappings))
	for name := range s.mappings {
		out = append(out, name)
	}
	return out
}
