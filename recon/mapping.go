/*
Package recon implements universal-records reconciliation: matching
uploaded third-party record files against the master ledger on a
per-insurer, per-field basis and surfacing discrepancies.

PURPOSE:
  Each insurer ships files in its own column layout. An InsurerFieldMapping
  translates those columns to canonical master-sheet field ids and attaches
  a normalization rule per field, so "1,000.00" in an upload and "1000" in
  the ledger can be recognized as the same premium.

KEY CONCEPTS IN THIS FILE (mapping.go):
  - InsurerFieldMapping: ordered source column -> canonical field, per insurer
  - Rule: a per-field normalization (trim, uppercase, numeric, date)
  - Row: one uploaded record, column label -> raw text

DESIGN PRINCIPLES:
  1. Purity: comparison is a side-effect-free function over immutable
     inputs (see engine.go); it can run per policy key in parallel
  2. Determinism: output ordering never depends on input iteration order
  3. Raw values survive: variance entries carry pre-normalization values
     so a human can inspect what each side actually said

SEE ALSO:
  - engine.go: The comparison itself
  - resolver.go: Per-insurer mapping cache
  - factory/mapping.go: YAML mapping documents
*/
package recon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
)

// Row is one uploaded record: source column label -> raw cell text.
type Row map[string]string

// UploadSource supplies raw row sequences for an uploaded file reference.
type UploadSource interface {
	FetchUploadedRecords(fileRef string) ([]Row, error)
}

// MappingStore is the reference-data collaborator holding one mapping per
// insurer. Implementations return ErrUnknownInsurer for absent insurers.
type MappingStore interface {
	GetMapping(ctx context.Context, insurer string) (InsurerFieldMapping, error)
}

// =============================================================================
// NORMALIZATION RULES
// =============================================================================

// Rule names the per-field transformation applied to both sides before
// equality comparison.
type Rule string

const (
	// RuleTrim is the baseline: surrounding whitespace removed, exact
	// string equality otherwise. It is also the default for unmapped rules.
	RuleTrim Rule = "trim"

	// RuleUppercase trims, then folds to upper case.
	RuleUppercase Rule = "uppercase"

	// RuleNumeric parses both sides as decimals, tolerating thousands
	// separators, and compares numerically.
	RuleNumeric Rule = "numeric"

	// RuleDate parses both sides with the column's declared layout and
	// compares the resulting dates.
	RuleDate Rule = "date"
)

// KnownRule reports whether r names a supported rule. Empty means trim.
func KnownRule(r Rule) bool {
	switch r {
	case "", RuleTrim, RuleUppercase, RuleNumeric, RuleDate:
		return true
	}
	return false
}

// ColumnMapping binds one source-file column to one canonical field.
type ColumnMapping struct {
	// Source is the column label as it appears in the uploaded file.
	Source string

	// Field is the canonical master-sheet field the column feeds.
	Field mastersheet.FieldID

	// Rule is the normalization applied before comparison. Empty = trim.
	Rule Rule

	// DateLayout is the fixed Go time layout for RuleDate columns.
	DateLayout string
}

// InsurerFieldMapping is one insurer's upload dialect: the ordered column
// translations plus the canonical field that identifies a policy.
//
// Invariant: a canonical field id appears at most once as a target.
// Source columns with no mapping are ignored, never errors.
type InsurerFieldMapping struct {
	Insurer   string
	PolicyKey mastersheet.FieldID
	Columns   []ColumnMapping
}

// Validate checks the structural invariants of the mapping.
func (m InsurerFieldMapping) Validate() error {
	if m.Insurer == "" {
		return fmt.Errorf("mapping has no insurer name")
	}
	if m.PolicyKey == "" {
		return fmt.Errorf("mapping %q has no policy key field", m.Insurer)
	}
	seen := make(map[mastersheet.FieldID]string, len(m.Columns))
	keyMapped := false
	for _, c := range m.Columns {
		if c.Field == "" || c.Source == "" {
			return fmt.Errorf("mapping %q: column %q -> %q is incomplete", m.Insurer, c.Source, c.Field)
		}
		if prev, dup := seen[c.Field]; dup {
			return fmt.Errorf("mapping %q: field %s targeted by both %q and %q", m.Insurer, c.Field, prev, c.Source)
		}
		seen[c.Field] = c.Source
		if !KnownRule(c.Rule) {
			return fmt.Errorf("mapping %q: column %q has unknown rule %q", m.Insurer, c.Source, c.Rule)
		}
		if c.Rule == RuleDate && c.DateLayout == "" {
			return fmt.Errorf("mapping %q: column %q declares date rule without a layout", m.Insurer, c.Source)
		}
		if c.Field == m.PolicyKey {
			keyMapped = true
		}
	}
	if !keyMapped {
		return fmt.Errorf("mapping %q: no column maps to policy key %s", m.Insurer, m.PolicyKey)
	}
	return nil
}

// Translate applies the column translation to one uploaded row, producing
// canonical field -> raw text. Unmapped columns are dropped.
func (m InsurerFieldMapping) Translate(row Row) map[mastersheet.FieldID]string {
	out := make(map[mastersheet.FieldID]string, len(m.Columns))
	for _, c := range m.Columns {
		if raw, ok := row[c.Source]; ok {
			out[c.Field] = raw
		}
	}
	return out
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// Normalize applies a column's rule to one raw value, returning the
// canonical comparison form. A non-nil error marks a parse failure under
// a declared rule; per the reconciliation contract the caller records it
// as a variance rather than aborting.
func Normalize(raw string, rule Rule, dateLayout string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	switch rule {
	case "", RuleTrim:
		return trimmed, nil
	case RuleUppercase:
		return strings.ToUpper(trimmed), nil
	case RuleNumeric:
		d, err := decimal.NewFromString(strings.ReplaceAll(trimmed, ",", ""))
		if err != nil {
			return trimmed, fmt.Errorf("numeric parse of %q: %w", raw, err)
		}
		return canonicalDecimal(d), nil
	case RuleDate:
		t, err := time.Parse(dateLayout, trimmed)
		if err != nil {
			return trimmed, fmt.Errorf("date parse of %q with layout %q: %w", raw, dateLayout, err)
		}
		return t.Format(mastersheet.DateLayout), nil
	default:
		return trimmed, fmt.Errorf("unknown rule %q", rule)
	}
}

// canonicalDecimal renders a decimal with trailing fractional zeros
// stripped, so 1000, 1000.0 and 1,000.00 share one comparison form.
func canonicalDecimal(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
