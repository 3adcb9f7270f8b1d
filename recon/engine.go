/*
engine.go - Field-by-field comparison of uploaded rows against the ledger

PURPOSE:
  Compare is a pure function: given the master records, the uploaded rows
  and a resolved mapping, it produces a deterministic variance report.
  No I/O, no shared state; the per-key work is independent.

COMPARISON CONTRACT:
  - Both sides are indexed by policy key (the uploaded side after column
    translation)
  - For each key present on both sides, every mapped field is normalized
    per its rule and compared; unequal normalized values yield one
    VarianceEntry carrying both raw values
  - A value that fails to parse under its declared rule is a variance
    with a parse-failure note, never a skip and never an abort
  - One-sided keys are counted as unmatched (upload or master side),
    not as variances
  - Output ordering is sorted, so permuting the inputs yields an
    identical report

SEE ALSO:
  - mapping.go: Translation and normalization
  - runner.go: Wraps Compare with upload fetching and run bookkeeping
*/
package recon

import (
	"fmt"
	"sort"

	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
)

// =============================================================================
// REPORT MODEL
// =============================================================================

// VarianceEntry is one field whose normalized values differ between the
// master ledger and the upload. Raw values are kept for inspection.
type VarianceEntry struct {
	PolicyKey     string              `json:"policy_key"`
	FieldID       mastersheet.FieldID `json:"field_id"`
	MasterValue   string              `json:"master_value"`
	UploadedValue string              `json:"uploaded_value"`

	// NormalizedEqual is always false for entries in a report; the type
	// doubles as the comparison result for callers probing single fields.
	NormalizedEqual bool `json:"normalized_equal"`

	// ParseFailure notes which side failed normalization, when one did.
	ParseFailure string `json:"parse_failure,omitempty"`
}

// Summary aggregates one reconciliation batch for an insurer.
type Summary struct {
	Insurer         string `json:"insurer"`
	TotalCompared   int    `json:"total_compared"`
	ExactMatches    int    `json:"exact_matches"`
	VariantRecords  int    `json:"variant_records"`
	UnmatchedUpload int    `json:"unmatched_upload"`
	UnmatchedMaster int    `json:"unmatched_master"`
}

// Report is the full outcome of comparing one upload against the ledger.
type Report struct {
	Summary         Summary         `json:"summary"`
	Variances       []VarianceEntry `json:"variances"`
	UnmatchedUpload []string        `json:"unmatched_upload_keys"`
	UnmatchedMaster []string        `json:"unmatched_master_keys"`
}

// =============================================================================
// COMPARISON
// =============================================================================

// Compare matches uploaded rows against master records under a mapping.
// Pure and deterministic: permuting either input yields the same report.
// Rows with a blank policy key are counted as unmatched-upload under the
// empty key, never matched.
func Compare(master []mastersheet.Record, uploaded []Row, m InsurerFieldMapping) Report {
	masterByKey := indexMaster(master, m.PolicyKey)
	uploadByKey := indexUpload(uploaded, m)

	report := Report{Summary: Summary{Insurer: m.Insurer}}

	keys := make([]string, 0, len(uploadByKey))
	for k := range uploadByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		row := uploadByKey[key]
		rec, ok := masterByKey[key]
		if !ok || key == "" {
			report.Summary.UnmatchedUpload++
			report.UnmatchedUpload = append(report.UnmatchedUpload, key)
			continue
		}
		report.Summary.TotalCompared++
		entries := compareRecord(key, rec, row, m)
		if len(entries) == 0 {
			report.Summary.ExactMatches++
		} else {
			report.Summary.VariantRecords++
			report.Variances = append(report.Variances, entries...)
		}
	}

	for key := range masterByKey {
		if _, ok := uploadByKey[key]; !ok {
			report.Summary.UnmatchedMaster++
			report.UnmatchedMaster = append(report.UnmatchedMaster, key)
		}
	}
	sort.Strings(report.UnmatchedMaster)

	return report
}

// compareRecord runs every mapped field of one matched pair, in mapping
// order, and returns the variances.
func compareRecord(key string, rec mastersheet.Record, translated map[mastersheet.FieldID]string, m InsurerFieldMapping) []VarianceEntry {
	var entries []VarianceEntry
	for _, col := range m.Columns {
		rawUpload, ok := translated[col.Field]
		if !ok {
			// Column absent from this row; nothing to compare.
			continue
		}
		rawMaster := ""
		if v, present := rec.Get(col.Field); present {
			rawMaster = v.String()
		}

		// The column's date layout describes the upload dialect; ledger
		// dates are stored canonically.
		masterLayout := col.DateLayout
		if col.Rule == RuleDate {
			masterLayout = mastersheet.DateLayout
		}
		normMaster, errMaster := Normalize(rawMaster, col.Rule, masterLayout)
		normUpload, errUpload := Normalize(rawUpload, col.Rule, col.DateLayout)

		if errMaster == nil && errUpload == nil && normMaster == normUpload {
			continue
		}

		entry := VarianceEntry{
			PolicyKey:     key,
			FieldID:       col.Field,
			MasterValue:   rawMaster,
			UploadedValue: rawUpload,
		}
		switch {
		case errMaster != nil && errUpload != nil:
			entry.ParseFailure = fmt.Sprintf("both sides: %v; %v", errMaster, errUpload)
		case errMaster != nil:
			entry.ParseFailure = fmt.Sprintf("master: %v", errMaster)
		case errUpload != nil:
			entry.ParseFailure = fmt.Sprintf("upload: %v", errUpload)
		}
		entries = append(entries, entry)
	}
	return entries
}

// indexMaster keys master records by their policy-key field value.
// A later duplicate key wins, mirroring the cache's newest-version rule;
// records without the key field are skipped.
func indexMaster(records []mastersheet.Record, key mastersheet.FieldID) map[string]mastersheet.Record {
	out := make(map[string]mastersheet.Record, len(records))
	for _, rec := range records {
		v, ok := rec.Get(key)
		if !ok || v == "" {
			continue
		}
		out[string(v)] = rec
	}
	return out
}

// indexUpload translates each row and keys it by policy key. A later
// duplicate row for the same key wins.
func indexUpload(rows []Row, m InsurerFieldMapping) map[string]map[mastersheet.FieldID]string {
	out := make(map[string]map[mastersheet.FieldID]string, len(rows))
	for _, row := range rows {
		translated := m.Translate(row)
		out[translated[m.PolicyKey]] = translated
	}
	return out
}
