package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInitCreatesFiles(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	require.NoError(t, runInit(nil, []string{dir}))

	for _, name := range []string{
		".bastet.yml",
		filepath.Join(".github", "workflows", "bastet.yml"),
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to exist", name)
		require.NotEmpty(t, data, "expected %s to have content", name)
	}
	require.NoFileExists(t, filepath.Join(dir, "copyright.json"))
}

func TestInitConfigIsValidYAML(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	require.NoError(t, runInit(nil, []string{dir}))

	data, err := os.ReadFile(filepath.Join(dir, ".bastet.yml"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	require.Equal(t, []any{"src", "tests"}, doc["sources"])
	require.Equal(t, 30, doc["timeout"])
}

func TestInitSkipsExisting(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	existing := filepath.Join(dir, ".bastet.yml")
	require.NoError(t, os.WriteFile(existing, []byte("custom: true\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)
	require.NoError(t, runInit(initCmd, []string{dir}))

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.Equal(t, "custom: true\n", string(data))
	require.Contains(t, out.String(), "skip "+existing)

	_, err = os.Stat(filepath.Join(dir, ".github", "workflows", "bastet.yml"))
	require.NoError(t, err)
}

func TestInitCopyright(t *testing.T) {
	resetFlags(t)
	flagCopyright = "Mewbot Developers <mewbot@quicksilver.london>"
	dir := t.TempDir()

	require.NoError(t, runInit(nil, []string{dir}))

	data, err := os.ReadFile(filepath.Join(dir, "copyright.json"))
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal(data, &info))
	require.Equal(t, "Mewbot Developers <mewbot@quicksilver.london>", info["copyright"])
	require.Equal(t, "BSD-2-Clause", info["license"])
}

func TestInitCIOnly(t *testing.T) {
	resetFlags(t)
	flagCIOnly = true
	dir := t.TempDir()

	require.NoError(t, runInit(nil, []string{dir}))

	require.FileExists(t, filepath.Join(dir, ".github", "workflows", "bastet.yml"))
	require.NoFileExists(t, filepath.Join(dir, ".bastet.yml"))
}

func TestInitHook(t *testing.T) {
	resetFlags(t)
	flagHook = true
	dir := t.TempDir()

	err := runInit(nil, []string{dir})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no .git directory")

	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, runInit(nil, []string{dir}))

	info, err := os.Stat(filepath.Join(dir, ".git", "hooks", "pre-commit"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o100, "hook should be executable")
}
