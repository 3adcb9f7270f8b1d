/*
seed.go - Demo data loader for development and demonstrations

PURPOSE:
  Populates the store with a small, realistic ledger and two insurer
  mappings so the admin frontend and the reconciliation flow can be
  exercised without a production export.

WHAT IT LOADS:
  - The canonical field schema (policy_number, insured_name, premium, ...)
  - Eight policy records across two insurers
  - Mappings for "Acme General" (numeric premium, UK dates) and
    "Sterling Mutual" (uppercased insured names)

NOTE:
  Seeding overwrites records with the same ids. Only use in
  development/demo environments.

SEE ALSO:
  - handlers.go: Route registration
  - factory/mapping.go: YAML alternative for mapping registration
*/
package api

import (
	"context"
	"net/http"

	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
	"github.com/HeshMedia/insurezeal-sub006/recon"
)

// demoFields is the canonical master-sheet schema, in display order.
var demoFields = []mastersheet.FieldID{
	"policy_number", "insured_name", "insurer", "product",
	"premium", "sum_insured", "start_date", "status",
}

var demoFieldTypes = mastersheet.FieldSet{
	"policy_number": mastersheet.TypeString,
	"insured_name":  mastersheet.TypeString,
	"insurer":       mastersheet.TypeString,
	"product":       mastersheet.TypeEnum,
	"premium":       mastersheet.TypeNumber,
	"sum_insured":   mastersheet.TypeNumber,
	"start_date":    mastersheet.TypeDate,
	"status":        mastersheet.TypeEnum,
}

// SeedDemo loads the demo ledger and mappings.
// POST /api/admin/seed
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if err := h.seed(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

func (h *Handler) seed(ctx context.Context) error {
	if err := h.Store.PutFields(ctx, demoFields, demoFieldTypes); err != nil {
		return err
	}

	records := []map[mastersheet.FieldID]mastersheet.Value{
		{"policy_number": "P100", "insured_name": "Asha Verma", "insurer": "Acme General", "product": "motor", "premium": "1000", "sum_insured": "500000", "start_date": "2026-01-15", "status": "active"},
		{"policy_number": "P101", "insured_name": "Rohan Mehta", "insurer": "Acme General", "product": "motor", "premium": "2450.50", "sum_insured": "750000", "start_date": "2026-02-01", "status": "active"},
		{"policy_number": "P102", "insured_name": "Leela Nair", "insurer": "Acme General", "product": "health", "premium": "18000", "sum_insured": "1000000", "start_date": "2026-03-10", "status": "active"},
		{"policy_number": "P103", "insured_name": "Dev Kapoor", "insurer": "Acme General", "product": "health", "premium": "9600", "sum_insured": "500000", "start_date": "2026-04-05", "status": "lapsed"},
		{"policy_number": "S200", "insured_name": "Meera Iyer", "insurer": "Sterling Mutual", "product": "life", "premium": "32000", "sum_insured": "5000000", "start_date": "2026-01-20", "status": "active"},
		{"policy_number": "S201", "insured_name": "Kabir Shah", "insurer": "Sterling Mutual", "product": "life", "premium": "27500", "sum_insured": "4000000", "start_date": "2026-02-14", "status": "active"},
		{"policy_number": "S202", "insured_name": "Tara Joshi", "insurer": "Sterling Mutual", "product": "term", "premium": "12250", "sum_insured": "2500000", "start_date": "2026-05-01", "status": "active"},
		{"policy_number": "S203", "insured_name": "Nikhil Rao", "insurer": "Sterling Mutual", "product": "term", "premium": "8900", "sum_insured": "2000000", "start_date": "2026-06-18", "status": "proposed"},
	}
	for _, fields := range records {
		rec := mastersheet.Record{
			ID:     mastersheet.RecordID("rec-" + string(fields["policy_number"])),
			Fields: fields,
		}
		if err := h.Store.UpsertRecord(ctx, rec); err != nil {
			return err
		}
	}

	mappings := []recon.InsurerFieldMapping{
		{
			Insurer:   "Acme General",
			PolicyKey: "policy_number",
			Columns: []recon.ColumnMapping{
				{Source: "Policy No", Field: "policy_number"},
				{Source: "Customer", Field: "insured_name"},
				{Source: "Premium Amount", Field: "premium", Rule: recon.RuleNumeric},
				{Source: "Cover", Field: "sum_insured", Rule: recon.RuleNumeric},
				{Source: "Inception", Field: "start_date", Rule: recon.RuleDate, DateLayout: "02/01/2006"},
			},
		},
		{
			Insurer:   "Sterling Mutual",
			PolicyKey: "policy_number",
			Columns: []recon.ColumnMapping{
				{Source: "PolicyRef", Field: "policy_number", Rule: recon.RuleUppercase},
				{Source: "Assured Name", Field: "insured_name", Rule: recon.RuleUppercase},
				{Source: "Annual Premium", Field: "premium", Rule: recon.RuleNumeric},
				{Source: "Commencement", Field: "start_date", Rule: recon.RuleDate, DateLayout: "2006-01-02"},
			},
		},
	}
	for _, m := range mappings {
		if err := h.Store.PutMapping(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
