// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package documents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan_FindsMarkdownExtensionsOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README.md"), "# Title\n")
	writeFile(t, filepath.Join(dir, "notes.mdx"), "# Notes\n")
	writeFile(t, filepath.Join(dir, "guide.markdown"), "# Guide\n")
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")

	docs, err := Scan(dir, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestScan_SkipsIgnoredDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README.md"), "# Title\n")
	writeFile(t, filepath.Join(dir, "vendor", "README.md"), "# Vendored\n")

	docs, err := Scan(dir, []string{"vendor"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "README.md", docs[0].RelativePath)
}

func TestScan_ComputesContentHash(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README.md"), "# Title\n")

	docs, err := Scan(dir, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].ContentHash)
}
