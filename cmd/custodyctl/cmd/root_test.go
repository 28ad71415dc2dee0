package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/custody-ingest/internal/sealing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { dbPath = "" })
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNormalizeCmd(t *testing.T) {
	out, err := run(t, "normalize", "MC")
	require.NoError(t, err)
	assert.Equal(t, "MC.PA\n", out)

	out, err = run(t, "normalize", "xyz", "--currency", "CHF")
	require.NoError(t, err)
	assert.Equal(t, "XYZ.SW\n", out)

	_, err = run(t, "normalize", " ")
	assert.Error(t, err)
}

func TestGenKeyCmd(t *testing.T) {
	out, err := run(t, "genkey")
	require.NoError(t, err)

	_, err = sealing.NewFernet(strings.TrimSpace(out))
	assert.NoError(t, err)
}

// TestStoreCmds tests the commands that open the store.
//
// WHY: The command line tool must run the same migrations and the same
// mode checks as the server so both can share one database file.
func TestStoreCmds(t *testing.T) {
	t.Chdir(t.TempDir())
	db := filepath.Join(t.TempDir(), "store.db")

	out, err := run(t, "migrate", "--db", db)
	require.NoError(t, err)
	var migrated map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &migrated))
	assert.Positive(t, migrated["schemaVersion"])

	out, err = run(t, "dedup", "--db", db, "--mode", "flag")
	require.NoError(t, err)
	assert.Contains(t, out, `"mode": "flag"`)

	_, err = run(t, "dedup", "--db", db, "--mode", "purge")
	assert.Error(t, err)

	_, err = run(t, "classify", "--db", db)
	assert.Error(t, err)

	_, err = run(t, "ingest", "--db", db, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
