/*
runner.go - Reconciliation run orchestration

PURPOSE:
  Runner owns the full upload-to-report flow: resolve the insurer's
  mapping, fetch the uploaded rows, run the pure comparison, and stamp
  the result as a Run with an id and timestamps for audit trails.

SEE ALSO:
  - engine.go: The comparison
  - resolver.go: Mapping cache
  - upload/csv.go: The shipped UploadSource
*/
package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HeshMedia/insurezeal-sub006/mastersheet"
)

// Run is one completed reconciliation of an upload against the ledger.
type Run struct {
	ID          uuid.UUID `json:"id"`
	Insurer     string    `json:"insurer"`
	FileRef     string    `json:"file_ref"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Report      Report    `json:"report"`
}

// Runner coordinates reconciliation runs.
type Runner struct {
	resolver *Resolver
	uploads  UploadSource
	logger   *zap.Logger
}

// NewRunner creates a runner. A nil logger disables logging.
func NewRunner(resolver *Resolver, uploads UploadSource, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{resolver: resolver, uploads: uploads, logger: logger}
}

// Run reconciles one uploaded file against the given master records.
// Mapping resolution failures (including UnknownInsurerError) abort the
// run; parse failures inside the comparison never do.
func (r *Runner) Run(ctx context.Context, insurer, fileRef string, master []mastersheet.Record) (Run, error) {
	started := time.Now().UTC()

	mapping, err := r.resolver.Resolve(ctx, insurer)
	if err != nil {
		return Run{}, err
	}

	rows, err := r.uploads.FetchUploadedRecords(fileRef)
	if err != nil {
		return Run{}, fmt.Errorf("fetch uploaded records %q: %w", fileRef, err)
	}

	report := Compare(master, rows, mapping)
	run := Run{
		ID:          uuid.New(),
		Insurer:     insurer,
		FileRef:     fileRef,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
		Report:      report,
	}

	r.logger.Info("reconciliation run complete",
		zap.String("run_id", run.ID.String()),
		zap.String("insurer", insurer),
		zap.String("file_ref", fileRef),
		zap.Int("compared", report.Summary.TotalCompared),
		zap.Int("variant", report.Summary.VariantRecords),
		zap.Int("unmatched_upload", report.Summary.UnmatchedUpload),
		zap.Int("unmatched_master", report.Summary.UnmatchedMaster))
	return run, nil
}

// Invalidate drops the cached mapping for an insurer so the next run
// refetches it. For administrative mapping updates.
func (r *Runner) Invalidate(insurer string) {
	r.resolver.Invalidate(insurer)
	r.logger.Info("mapping invalidated", zap.String("insurer", insurer))
}
