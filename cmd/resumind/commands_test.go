package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("KV_BACKEND", "memory")
	t.Setenv("OBJECT_STORE", "local")
	t.Setenv("LOCAL_STORE_DIR", t.TempDir())
	t.Setenv("STATUS_QUEUE", "none")

	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"resumind"}, args...))
	return out.String(), err
}

func TestListEmpty(t *testing.T) {
	out, err := runCLI(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved analyses.")
}

func TestWipeRequiresConfirmation(t *testing.T) {
	_, err := runCLI(t, "wipe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err := runCLI(t, "wipe", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 analyses")
}

func TestShowMissingRecord(t *testing.T) {
	_, err := runCLI(t, "show")
	require.Error(t, err)

	_, err = runCLI(t, "show", "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAnalyzeUnreadablePDFReportsStage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not really a pdf"), 0o600))

	out, err := runCLI(t, "analyze", "--file", path, "--job-title", "Engineer", "--job-description", "Go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extracting_text")
	assert.Contains(t, out, "cv.pdf (0.02 KB)")
	assert.Contains(t, out, "Extracting text from resume...")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "Error: "))
}

func TestAnalyzeValidatesBeforeReadingJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	out, err := runCLI(t, "analyze", "--file", path, "--job-title", "Engineer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please fill in Job Description")
	assert.Contains(t, out, "Error: Please fill in Job Description")
}

func TestReadMaybeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jd.txt")
	require.NoError(t, os.WriteFile(path, []byte("Build APIs"), 0o600))

	got, err := readMaybeFile("@" + path)
	require.NoError(t, err)
	assert.Equal(t, "Build APIs", got)

	got, err = readMaybeFile("inline text")
	require.NoError(t, err)
	assert.Equal(t, "inline text", got)
}

func TestMemoryBackendWarns(t *testing.T) {
	t.Setenv("KV_BACKEND", "memory")
	t.Setenv("OBJECT_STORE", "local")
	t.Setenv("LOCAL_STORE_DIR", t.TempDir())
	t.Setenv("STATUS_QUEUE", "none")

	var out, errOut bytes.Buffer
	app := newApp(&out)
	app.ErrWriter = &errOut
	require.NoError(t, app.Run(context.Background(), []string{"resumind", "list"}))
	assert.Contains(t, errOut.String(), "KV_BACKEND=memory")
	assert.NotContains(t, out.String(), "KV_BACKEND=memory")
}

func TestUnknownBackendFails(t *testing.T) {
	t.Setenv("KV_BACKEND", "postgress")
	t.Setenv("OBJECT_STORE", "local")
	t.Setenv("LOCAL_STORE_DIR", t.TempDir())
	t.Setenv("STATUS_QUEUE", "none")

	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), []string{"resumind", "list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown KV_BACKEND "postgress"`)
}
