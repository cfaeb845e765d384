package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlind/bulkcat/internal/runstore"
	"github.com/tlind/bulkcat/internal/testutil"
	"github.com/tlind/bulkcat/pkg/engine"
)

// writeTestConfig writes a config pointing the run store into dir and
// returns the config file path.
func writeTestConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	path := filepath.Join(dir, "bulkcat.yaml")
	content := fmt.Sprintf(`
catalog:
  base_url: %q
engine:
  workers: 3
  rate: 1000
runstore:
  path: %q
`, baseURL, filepath.Join(dir, "runs.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeTestInput writes n valid work items in JSONL form.
func writeTestInput(t *testing.T, dir string, n int) string {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, `{"id":"sku-%d","method":"PUT","path":"/products/%d/inventory","body":{"quantity":1}}`+"\n", i, i)
	}
	path := filepath.Join(dir, "items.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

// execute runs the root command with args and captures stdout.
func execute(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out, err
}

func TestRunCommand_DryRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")
	inputPath := writeTestInput(t, dir, 10)

	out, err := execute(t, "run", "--config", cfgPath, "--input", inputPath, "--dry-run")
	require.NoError(t, err)

	var report engine.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 10, report.Total)
	assert.Equal(t, 10, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.True(t, report.DryRun)
}

func TestRunCommand_AgainstMockCatalog(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	// One item keeps failing terminally.
	mock.SetResponse("/products/3/inventory", testutil.MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error":"bad payload"}`,
	})

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, mock.URL())
	inputPath := writeTestInput(t, dir, 8)

	out, err := execute(t, "run", "--config", cfgPath, "--input", inputPath)
	require.ErrorIs(t, err, errRunFailures)

	var report engine.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 8, report.Total)
	assert.Equal(t, 7, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "sku-3", report.Failures[0].ItemID)

	// The failing item must not be retried.
	assert.Equal(t, 1, mock.PathCount("/products/3/inventory"))
	assert.Equal(t, 8, mock.RequestCount())
}

func TestRunCommand_FlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	// The config file sets workers: 3 and rate: 1000.
	cfgPath := writeTestConfig(t, dir, "")
	inputPath := writeTestInput(t, dir, 4)

	t.Setenv("BULKCAT_ENGINE_WORKERS", "4")

	_, err := execute(t, "run", "--config", cfgPath, "--input", inputPath,
		"--dry-run", "--workers", "6", "--rps", "250")
	require.NoError(t, err)

	_, err = execute(t, "run", "--config", cfgPath, "--input", inputPath, "--dry-run")
	require.NoError(t, err)

	store, err := runstore.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	// First run: explicit flags beat both the env var and the file.
	first, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 6, first.Workers)
	assert.Equal(t, 250.0, first.Rate)

	// Second run: no flags, so the env override beats the file value and
	// the file value stands where no env var is set.
	second, err := store.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 4, second.Workers)
	assert.Equal(t, 1000.0, second.Rate)
}

func TestRunCommand_MissingInput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")

	_, err := execute(t, "run", "--config", cfgPath, "--input", filepath.Join(dir, "nope.jsonl"), "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open input")
}

func TestRunCommand_RequiresBaseURL(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")
	inputPath := writeTestInput(t, dir, 1)

	_, err := execute(t, "run", "--config", cfgPath, "--input", inputPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestRunsCommands_RoundTrip(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, mock.URL())
	inputPath := writeTestInput(t, dir, 5)

	_, err := execute(t, "run", "--config", cfgPath, "--input", inputPath)
	require.NoError(t, err)

	out, err := execute(t, "runs", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "items.jsonl")

	out, err = execute(t, "runs", "show", "1", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"succeeded": 5`)

	_, err = execute(t, "runs", "show", "99", "--config", cfgPath)
	require.Error(t, err)
}

func TestFetchCommand(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetResponse("/products/42", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"id":42,"name":"widget"}`,
	})

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, mock.URL())

	out, err := execute(t, "fetch", "/products/42", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"widget"`)

	// Error statuses surface as command errors.
	mock.SetResponse("/products/43", testutil.MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error":"no such product"}`,
	})
	_, err = execute(t, "fetch", "/products/43", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: exitOK},
		{name: "failures", err: fmt.Errorf("%w: 3 items", errRunFailures), want: exitFailures},
		{name: "interrupted", err: fmt.Errorf("%w: context canceled", errInterrupted), want: exitInterrupted},
		{name: "other error", err: fmt.Errorf("boom"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
