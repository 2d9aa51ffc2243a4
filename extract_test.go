// extract_test.go: Tests for plugin package extraction
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPackage_RoundTrip(t *testing.T) {
	base := t.TempDir()
	pkg := filepath.Join(base, "ocr-lens.plugpkg")
	writePackage(t, pkg, "ocr-lens", descriptorDoc{PluginID: "id-ocr", Name: "OCR Lens"})

	dest := filepath.Join(base, "extracted")
	require.NoError(t, ExtractPackage(pkg, dest))

	for _, rel := range []string{"ocr-lens/plugin.json", "ocr-lens/plugin.bin"} {
		if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(rel))); err != nil {
			t.Errorf("expected %s after extraction: %v", rel, err)
		}
	}
}

func TestExtractPackage_MissingArchive(t *testing.T) {
	base := t.TempDir()
	err := ExtractPackage(filepath.Join(base, "absent.plugpkg"), filepath.Join(base, "out"))
	assertErrorCode(t, err, ErrCodeExtractFailed)
}

func TestExtractPackage_NotAZip(t *testing.T) {
	base := t.TempDir()
	pkg := filepath.Join(base, "fake.plugpkg")
	require.NoError(t, os.WriteFile(pkg, []byte("this is not a zip archive"), 0o644))

	err := ExtractPackage(pkg, filepath.Join(base, "out"))
	assertErrorCode(t, err, ErrCodeExtractFailed)
}

// writeRawArchive builds a zip with arbitrary entry names, bypassing the
// well-formed package helper.
func writeRawArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	out, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestExtractPackage_RejectsEscapingEntries(t *testing.T) {
	testCases := []struct {
		name  string
		entry string
	}{
		{"parent traversal", "../evil.txt"},
		{"nested traversal", "plugin/../../evil.txt"},
		{"absolute path", "/etc/evil.txt"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			base := t.TempDir()
			pkg := filepath.Join(base, "hostile.plugpkg")
			writeRawArchive(t, pkg, map[string]string{tc.entry: "payload"})

			dest := filepath.Join(base, "out")
			err := ExtractPackage(pkg, dest)
			assertErrorCode(t, err, ErrCodeUnsafeZipEntry)

			// Nothing may have leaked outside the extraction root.
			if _, statErr := os.Stat(filepath.Join(base, "evil.txt")); !os.IsNotExist(statErr) {
				t.Fatal("escaping entry was written outside the extraction root")
			}
		})
	}
}

func TestResolveExtractedPluginDir(t *testing.T) {
	t.Run("descriptor at extraction root", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"),
			[]byte(`{"plugin_id":"x"}`), 0o644))

		resolved, err := resolveExtractedPluginDir(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, resolved)
	})

	t.Run("descriptor in single top-level folder", func(t *testing.T) {
		dir := t.TempDir()
		nested := filepath.Join(dir, "my-plugin")
		require.NoError(t, os.MkdirAll(nested, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(nested, "plugin.yaml"),
			[]byte("plugin_id: x"), 0o644))

		resolved, err := resolveExtractedPluginDir(dir)
		require.NoError(t, err)
		assert.Equal(t, nested, resolved)
	})

	t.Run("no descriptor anywhere", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "junk"), 0o755))

		_, err := resolveExtractedPluginDir(dir)
		assertErrorCode(t, err, ErrCodeDescriptorNotFound)
	})
}
