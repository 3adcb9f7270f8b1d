package upload_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeshMedia/insurezeal-sub006/recon"
	"github.com/HeshMedia/insurezeal-sub006/upload"
)

// =============================================================================
// ROW PARSING
// =============================================================================

func TestReadRows_HeaderDefinesLabels(t *testing.T) {
	rows, err := upload.ReadRows(strings.NewReader(
		"Policy No,Premium Amount\nP100,\"1,000.00\"\nP101,250\n"))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, recon.Row{"Policy No": "P100", "Premium Amount": "1,000.00"}, rows[0])
	assert.Equal(t, recon.Row{"Policy No": "P101", "Premium Amount": "250"}, rows[1])
}

func TestReadRows_RaggedRowsTolerated(t *testing.T) {
	// GIVEN a row with a missing trailing cell and one with an extra cell
	rows, err := upload.ReadRows(strings.NewReader(
		"Policy No,Premium Amount\nP100\nP101,250,extra\n"))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	// THEN short rows omit the absent columns and long rows drop the overflow
	_, hasPremium := rows[0]["Premium Amount"]
	assert.False(t, hasPremium)
	assert.Equal(t, recon.Row{"Policy No": "P101", "Premium Amount": "250"}, rows[1])
}

func TestReadRows_BlankRowsSkipped(t *testing.T) {
	rows, err := upload.ReadRows(strings.NewReader(
		"Policy No,Premium Amount\n,\nP100,250\n"))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "P100", rows[0]["Policy No"])
}

func TestReadRows_EmptyInput(t *testing.T) {
	_, err := upload.ReadRows(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

// =============================================================================
// FILE SOURCE
// =============================================================================

func TestCSVSource_FetchUploadedRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acme_jan.csv")
	require.NoError(t, os.WriteFile(path, []byte("Policy No\nP100\n"), 0o644))

	src := upload.NewCSVSource(dir)
	rows, err := src.FetchUploadedRecords("acme_jan.csv")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "P100", rows[0]["Policy No"])
}

func TestCSVSource_RejectsEscapingReferences(t *testing.T) {
	src := upload.NewCSVSource(t.TempDir())

	for _, ref := range []string{
		"/etc/passwd",
		"../secrets.csv",
		"..",
		"a/../../b.csv",
	} {
		_, err := src.FetchUploadedRecords(ref)
		assert.Error(t, err, "reference %q must be rejected", ref)
	}
}

func TestCSVSource_MissingFile(t *testing.T) {
	src := upload.NewCSVSource(t.TempDir())
	_, err := src.FetchUploadedRecords("nope.csv")
	assert.Error(t, err)
}
