package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterFile = `
ctr {Inc}
fun (Counter action) {
  (Counter {Inc}) = !take x; !save (+ x #1); !done x
} with { #40 }
run { !call r 'Counter' [{Inc}]; !call s 'Counter' [{Inc}]; !done {T2 r s} }
run { !fail #1 }
`

const quietConfig = "data_dir: .\nlog_level: error\n"

// execute runs the CLI with a quiet config and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, quietConfig, args...)
}

func executeWith(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "funledger.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(config), 0o644))

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestRunPrintsResults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "counter.fl", counterFile)
	out, err := execute(t, "run", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[2], "committed")
	assert.Contains(t, lines[2], "=> {T2 #40 #41}")
	assert.Contains(t, lines[3], "rejected")
	assert.Contains(t, lines[3], "ActionFailed")
	assert.True(t, strings.HasPrefix(lines[4], "digest "))
}

func TestKeygenSignAndSubject(t *testing.T) {
	out, err := execute(t, "keygen")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 4)
	key, subject := fields[1], fields[3]

	out, err = execute(t, "subject", "--key", key)
	require.NoError(t, err)
	assert.Equal(t, subject, strings.TrimSpace(out))

	dir := t.TempDir()
	path := writeFile(t, dir, "unsigned.fl", counterFile)
	signed, err := execute(t, "sign", path, "--key", key)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(signed, "sign {"))

	// the signed output is itself a valid statement file; top-level names
	// belong to the root authority, so the signer has to be it
	signedPath := writeFile(t, dir, "signed.fl", signed)
	out, err = execute(t, "run", signedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Unauthorized")

	rooted := quietConfig + "genesis:\n  root_authority: " + subject + "\n"
	out, err = executeWith(t, rooted, "run", signedPath)
	require.NoError(t, err)
	assert.NotContains(t, out, "Unauthorized")
	assert.Contains(t, out, "=> {T2 #40 #41}")

	t.Setenv(keyEnv, "")
	_, err = execute(t, "subject")
	assert.Error(t, err, "no key")
}

func TestFmtIsStable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "counter.fl", counterFile)
	first, err := execute(t, "fmt", path)
	require.NoError(t, err)
	again, err := execute(t, "fmt", writeFile(t, dir, "formatted.fl", first))
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestReplayAndDigestAgree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.blk", counterFile)
	writeFile(t, dir, "2.blk", `run { !call r 'Counter' [{Inc}] !done r }`)

	out, err := execute(t, "replay", "--no-store", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "applied 2 blocks, height 2")

	digest, err := execute(t, "digest", dir)
	require.NoError(t, err)
	assert.Contains(t, out, strings.TrimSpace(digest))
}

func TestUnknownFileFails(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.fl"))
	assert.Error(t, err)
}
