package recon_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
	"github.com/HeshMedia/insurezeal-sub006/recon"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func acmeMapping() recon.InsurerFieldMapping {
	return recon.InsurerFieldMapping{
		Insurer:   "Acme General",
		PolicyKey: "policy_number",
		Columns: []recon.ColumnMapping{
			{Source: "Policy No", Field: "policy_number"},
			{Source: "Premium Amount", Field: "premium", Rule: recon.RuleNumeric},
		},
	}
}

func masterRecord(id, policy, premium string) mastersheet.Record {
	return mastersheet.Record{
		ID:      mastersheet.RecordID(id),
		Version: 1,
		Fields: map[mastersheet.FieldID]mastersheet.Value{
			"policy_number": mastersheet.Value(policy),
			"premium":       mastersheet.Value(premium),
		},
	}
}

// =============================================================================
// COMPARISON TESTS
// =============================================================================

func TestCompare_NormalizedEqual_NoVariance(t *testing.T) {
	// GIVEN: master premium "1000" and uploaded "1,000.00" under numeric-parse
	// WHEN: Comparing
	// THEN: No variance; one exact match

	master := []mastersheet.Record{masterRecord("rec-1", "P100", "1000")}
	uploaded := []recon.Row{{"Policy No": "P100", "Premium Amount": "1,000.00"}}

	report := recon.Compare(master, uploaded, acmeMapping())

	assert.Empty(t, report.Variances)
	assert.Equal(t, 1, report.Summary.TotalCompared)
	assert.Equal(t, 1, report.Summary.ExactMatches)
	assert.Equal(t, 0, report.Summary.VariantRecords)
}

func TestCompare_DifferentPremium_OneVariance(t *testing.T) {
	master := []mastersheet.Record{masterRecord("rec-1", "P100", "1000")}
	uploaded := []recon.Row{{"Policy No": "P100", "Premium Amount": "1200"}}

	report := recon.Compare(master, uploaded, acmeMapping())

	require.Len(t, report.Variances, 1)
	v := report.Variances[0]
	assert.Equal(t, "P100", v.PolicyKey)
	assert.Equal(t, mastersheet.FieldID("premium"), v.FieldID)
	assert.Equal(t, "1000", v.MasterValue, "raw master value preserved")
	assert.Equal(t, "1200", v.UploadedValue, "raw uploaded value preserved")
	assert.Empty(t, v.ParseFailure)
	assert.Equal(t, 1, report.Summary.VariantRecords)
	assert.Equal(t, 0, report.Summary.ExactMatches)
}

func TestCompare_UnmatchedKeys_CountedNotVariant(t *testing.T) {
	// GIVEN: An uploaded policy absent from master, and a master policy
	//        absent from the upload
	// THEN: Both are counted as unmatched, with zero variances

	master := []mastersheet.Record{
		masterRecord("rec-1", "P100", "1000"),
		masterRecord("rec-2", "P101", "500"),
	}
	uploaded := []recon.Row{
		{"Policy No": "P100", "Premium Amount": "1000"},
		{"Policy No": "P999", "Premium Amount": "42"},
	}

	report := recon.Compare(master, uploaded, acmeMapping())

	assert.Empty(t, report.Variances)
	assert.Equal(t, 1, report.Summary.TotalCompared)
	assert.Equal(t, 1, report.Summary.UnmatchedUpload)
	assert.Equal(t, 1, report.Summary.UnmatchedMaster)
	assert.Equal(t, []string{"P999"}, report.UnmatchedUpload)
	assert.Equal(t, []string{"P101"}, report.UnmatchedMaster)
}

func TestCompare_ParseFailure_RecordedAsVariance(t *testing.T) {
	// GIVEN: An uploaded premium that cannot be parsed under numeric-parse
	// THEN: A variance with a parse-failure note, never a silent skip

	master := []mastersheet.Record{masterRecord("rec-1", "P100", "1000")}
	uploaded := []recon.Row{{"Policy No": "P100", "Premium Amount": "ten lakh"}}

	report := recon.Compare(master, uploaded, acmeMapping())

	require.Len(t, report.Variances, 1)
	v := report.Variances[0]
	assert.Equal(t, "ten lakh", v.UploadedValue)
	assert.Contains(t, v.ParseFailure, "upload")
	assert.Equal(t, 1, report.Summary.VariantRecords)
}

func TestCompare_MissingMasterField_IsVariance(t *testing.T) {
	master := []mastersheet.Record{{
		ID:      "rec-1",
		Version: 1,
		Fields:  map[mastersheet.FieldID]mastersheet.Value{"policy_number": "P100"},
	}}
	uploaded := []recon.Row{{"Policy No": "P100", "Premium Amount": "1000"}}

	report := recon.Compare(master, uploaded, acmeMapping())

	require.Len(t, report.Variances, 1)
	assert.Equal(t, "", report.Variances[0].MasterValue)
}

func TestCompare_ColumnAbsentFromRow_Skipped(t *testing.T) {
	master := []mastersheet.Record{masterRecord("rec-1", "P100", "1000")}
	uploaded := []recon.Row{{"Policy No": "P100"}} // no premium column at all

	report := recon.Compare(master, uploaded, acmeMapping())
	assert.Empty(t, report.Variances)
	assert.Equal(t, 1, report.Summary.ExactMatches)
}

func TestCompare_DateColumn_CanonicalMasterVersusUploadLayout(t *testing.T) {
	// GIVEN: Ledger dates in canonical form and uploaded dates in the
	//        insurer's day-first layout
	m := acmeMapping()
	m.Columns = append(m.Columns, recon.ColumnMapping{
		Source: "Inception", Field: "start_date",
		Rule: recon.RuleDate, DateLayout: "02/01/2006",
	})
	master := []mastersheet.Record{{
		ID:      "rec-1",
		Version: 1,
		Fields: map[mastersheet.FieldID]mastersheet.Value{
			"policy_number": "P100",
			"premium":       "1000",
			"start_date":    "2026-01-15",
		},
	}}

	// THEN: The same date in both dialects is no variance
	uploaded := []recon.Row{{"Policy No": "P100", "Premium Amount": "1000", "Inception": "15/01/2026"}}
	report := recon.Compare(master, uploaded, m)
	assert.Empty(t, report.Variances)
	assert.Equal(t, 1, report.Summary.ExactMatches)

	// AND: A different date is one variance with both raw values
	uploaded = []recon.Row{{"Policy No": "P100", "Premium Amount": "1000", "Inception": "16/01/2026"}}
	report = recon.Compare(master, uploaded, m)
	require.Len(t, report.Variances, 1)
	assert.Equal(t, "2026-01-15", report.Variances[0].MasterValue)
	assert.Equal(t, "16/01/2026", report.Variances[0].UploadedValue)
}

// =============================================================================
// DETERMINISM TESTS
// =============================================================================

func TestCompare_OrderIndependent(t *testing.T) {
	// GIVEN: The same inputs in two different orders
	// THEN: Reports are identical, entry for entry

	master := []mastersheet.Record{
		masterRecord("rec-1", "P100", "1000"),
		masterRecord("rec-2", "P101", "500"),
		masterRecord("rec-3", "P102", "750"),
	}
	uploaded := []recon.Row{
		{"Policy No": "P100", "Premium Amount": "1200"},
		{"Policy No": "P101", "Premium Amount": "500"},
		{"Policy No": "P999", "Premium Amount": "1"},
	}

	reversedMaster := []mastersheet.Record{master[2], master[1], master[0]}
	reversedUpload := []recon.Row{uploaded[2], uploaded[1], uploaded[0]}

	a := recon.Compare(master, uploaded, acmeMapping())
	b := recon.Compare(reversedMaster, reversedUpload, acmeMapping())

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("reports differ under permuted inputs (-forward +reversed):\n%s", diff)
	}
}
