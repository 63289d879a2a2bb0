package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoiney/oppy/pkg/config"
	apperrors "github.com/avoiney/oppy/pkg/errors"
)

const testConfig = `
profiles:
  work:
    domain: example
    tempFile: %s
logging:
  level: error
session:
  backend: env
cache:
  backend: none
vault:
  binary: oppy-test-missing-op
  retries: 1
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := bytes.ReplaceAll([]byte(testConfig), []byte("%s"), []byte(filepath.Join(dir, "items")))
	require.NoError(t, os.WriteFile(path, body, 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheckPrintsParsedQuery(t *testing.T) {
	out, err := execute(t, "check", `overview.title="Git*"&"mail"`)
	require.NoError(t, err)
	assert.Equal(t, "(overview.title=\"Git*\"&\"mail\")\n"+
		"  overview.title  ^Git.*$\n"+
		"  *  ^mail$ (any value, case-insensitive)\n", out)
}

func TestCheckJoinsArguments(t *testing.T) {
	out, err := execute(t, "check", "a", "|", "b")
	require.NoError(t, err)
	assert.Contains(t, out, `("a"|"b")`)
}

func TestCheckRejectsBadQuery(t *testing.T) {
	_, err := execute(t, "check", "title=Git*")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitUsage, apperrors.ExitCode(err))

	out, err := execute(t, "check", "--lenient", `title="Git"_`)
	require.NoError(t, err)
	assert.Contains(t, out, `title="Git"`)
}

func TestUnknownProfileIsUsageError(t *testing.T) {
	path := writeConfig(t)
	_, err := execute(t, "--config", path, "search", "home", "git")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownProfile)
	assert.Equal(t, apperrors.ExitUsage, apperrors.ExitCode(err))
}

func TestSearchWithoutSessionIsAuthError(t *testing.T) {
	path := writeConfig(t)
	t.Setenv("OP_SESSION_example", "")
	_, err := execute(t, "--config", path, "search", "work", "git")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitAuth, apperrors.ExitCode(err))
}

func TestDoctorReportsMissingOp(t *testing.T) {
	path := writeConfig(t)
	t.Setenv("OP_SESSION_example", "tok")

	out, err := execute(t, "--config", path, "doctor", "work")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitUnavailable, apperrors.ExitCode(err))

	assert.Contains(t, out, "op         down")
	assert.Contains(t, out, "session    up")
	assert.Contains(t, out, "redis      skipped")
	assert.Contains(t, out, "postgres   skipped")
	assert.Contains(t, out, "kafka      skipped")
	assert.Contains(t, out, "overall    down")
}

func TestNeedsRedis(t *testing.T) {
	cfg := &config.Config{}
	assert.False(t, needsRedis(cfg))
	cfg.Cache.Backend = "redis"
	assert.True(t, needsRedis(cfg))
	cfg.Cache.Backend = "file"
	cfg.Session.Backend = "redis"
	assert.True(t, needsRedis(cfg))
}

func TestAppCloseRunsInReverse(t *testing.T) {
	var order []int
	a := &app{}
	for i := range 3 {
		a.onClose(func() error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, a.Close())
	assert.Equal(t, []int{2, 1, 0}, order)
	require.NoError(t, a.Close())
}
