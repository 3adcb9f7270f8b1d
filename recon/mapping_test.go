package recon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeshMedia/insurezeal-sub006/recon"
)

// =============================================================================
// NORMALIZATION TESTS
// =============================================================================

func TestNormalize_Trim_IsBaseline(t *testing.T) {
	got, err := recon.Normalize("  P100  ", recon.RuleTrim, "")
	require.NoError(t, err)
	assert.Equal(t, "P100", got)

	// Empty rule means trim.
	got, err = recon.Normalize(" x ", "", "")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

func TestNormalize_Uppercase_FoldsCase(t *testing.T) {
	got, err := recon.Normalize("  asha verma ", recon.RuleUppercase, "")
	require.NoError(t, err)
	assert.Equal(t, "ASHA VERMA", got)
}

func TestNormalize_Numeric_ToleratesRepresentation(t *testing.T) {
	cases := []string{"1000", "1,000", "1000.0", "1,000.00", " 1000 "}
	for _, raw := range cases {
		got, err := recon.Normalize(raw, recon.RuleNumeric, "")
		require.NoError(t, err, raw)
		assert.Equal(t, "1000", got, raw)
	}

	got, err := recon.Normalize("2,450.50", recon.RuleNumeric, "")
	require.NoError(t, err)
	assert.Equal(t, "2450.5", got)
}

func TestNormalize_Numeric_ParseFailure(t *testing.T) {
	_, err := recon.Normalize("ten lakh", recon.RuleNumeric, "")
	assert.Error(t, err)
}

func TestNormalize_Date_UsesDeclaredLayout(t *testing.T) {
	got, err := recon.Normalize("15/01/2026", recon.RuleDate, "02/01/2006")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", got)

	_, err = recon.Normalize("2026-01-15", recon.RuleDate, "02/01/2006")
	assert.Error(t, err, "wrong layout is a parse failure, not a silent pass")
}

// =============================================================================
// MAPPING INVARIANT TESTS
// =============================================================================

func validMapping() recon.InsurerFieldMapping {
	return recon.InsurerFieldMapping{
		Insurer:   "Acme General",
		PolicyKey: "policy_number",
		Columns: []recon.ColumnMapping{
			{Source: "Policy No", Field: "policy_number"},
			{Source: "Premium Amount", Field: "premium", Rule: recon.RuleNumeric},
		},
	}
}

func TestMapping_Validate_AcceptsWellFormed(t *testing.T) {
	assert.NoError(t, validMapping().Validate())
}

func TestMapping_Validate_RejectsDuplicateTarget(t *testing.T) {
	m := validMapping()
	m.Columns = append(m.Columns, recon.ColumnMapping{Source: "Premium", Field: "premium"})
	assert.Error(t, m.Validate(), "a canonical field may be a target at most once")
}

func TestMapping_Validate_RejectsUnmappedPolicyKey(t *testing.T) {
	m := validMapping()
	m.PolicyKey = "certificate_number"
	assert.Error(t, m.Validate())
}

func TestMapping_Validate_RejectsDateWithoutLayout(t *testing.T) {
	m := validMapping()
	m.Columns = append(m.Columns, recon.ColumnMapping{Source: "Inception", Field: "start_date", Rule: recon.RuleDate})
	assert.Error(t, m.Validate())
}

func TestMapping_Translate_IgnoresUnmappedColumns(t *testing.T) {
	m := validMapping()
	got := m.Translate(recon.Row{
		"Policy No":      "P100",
		"Premium Amount": "1,000.00",
		"Branch Office":  "Pune", // not mapped: ignored, not an error
	})
	assert.Equal(t, "P100", got["policy_number"])
	assert.Equal(t, "1,000.00", got["premium"])
	assert.Len(t, got, 2)
}
