// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()

	cmd := RunGenerateConfigCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestGenerateConfigCustomDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")

	output := runCommand(t, "--config-dir", dir)
	assert.Contains(t, output, "Configuration file created")

	content, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "sessionSecret")
	assert.Contains(t, string(content), "[license]")
}

func TestGenerateConfigCustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "myconfig.toml")

	output := runCommand(t, "--config-dir", path)
	assert.Contains(t, output, "Configuration file created")

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestGenerateConfigSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(existing, []byte("host = \"keepme\"\n"), 0644))

	output := runCommand(t, "--config-dir", dir)
	assert.Contains(t, output, "already exists")

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "host = \"keepme\"\n", string(content), "existing config must not be overwritten")
}
