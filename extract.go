// extract.go: Plugin package extraction
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractPackage unpacks a zip plugin package into destDir.
//
// Every entry path is validated against the extraction root before being
// written; an entry that would escape it (absolute path, ".." traversal)
// aborts the extraction. destDir is created if absent.
func ExtractPackage(packagePath, destDir string) error {
	reader, err := zip.OpenReader(packagePath)
	if err != nil {
		return NewExtractFailedError(packagePath, err)
	}
	defer func() { _ = reader.Close() }()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return NewExtractFailedError(packagePath, err)
	}

	for _, file := range reader.File {
		if err := extractEntry(file, destDir); err != nil {
			return err
		}
	}

	return nil
}

// extractEntry writes a single archive entry under destDir.
func extractEntry(file *zip.File, destDir string) error {
	target, err := safeEntryPath(file.Name, destDir)
	if err != nil {
		return err
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return NewExtractFailedError(file.Name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return NewExtractFailedError(file.Name, err)
	}

	in, err := file.Open()
	if err != nil {
		return NewExtractFailedError(file.Name, err)
	}
	defer func() { _ = in.Close() }()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return NewExtractFailedError(file.Name, err)
	}

	if _, err := io.Copy(out, in); err != nil { // #nosec G110 - plugin installs are rare, user-initiated operations
		_ = out.Close()
		return NewExtractFailedError(file.Name, err)
	}
	return out.Close()
}

// safeEntryPath resolves an archive entry name below destDir, rejecting
// entries that would escape the extraction root.
func safeEntryPath(entryName, destDir string) (string, error) {
	if filepath.IsAbs(entryName) || strings.Contains(entryName, "..") {
		return "", NewUnsafeZipEntryError(entryName)
	}

	target := filepath.Join(destDir, filepath.FromSlash(entryName))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NewUnsafeZipEntryError(entryName)
	}

	return target, nil
}

// resolveExtractedPluginDir locates the plugin directory at the root of an
// extracted package tree.
//
// A well-formed package yields either the descriptor directly at the
// extraction root or a single top-level directory containing it.
func resolveExtractedPluginDir(destDir string) (string, error) {
	if hasDescriptor(destDir) {
		return destDir, nil
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", NewExtractFailedError(destDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(destDir, entry.Name())
		if hasDescriptor(dir) {
			return dir, nil
		}
	}

	return "", NewDescriptorNotFoundError(destDir)
}

// hasDescriptor reports whether dir directly contains a plugin descriptor.
func hasDescriptor(dir string) bool {
	for _, name := range descriptorFileNames {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}
