// fsutil.go: Directory move, copy, and deferred-deletion primitives
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"io"
	"os"
	"path/filepath"
)

// DeleteSentinelName is the reserved marker file flagging a directory for
// removal at the next safe opportunity. Its mere presence is the entire
// protocol; the file is zero bytes and its content is never read.
const DeleteSentinelName = "NeedDelete"

// ShouldDeleteDirectory reports whether dir carries the deletion sentinel
// directly inside it.
func ShouldDeleteDirectory(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, DeleteSentinelName))
	return err == nil && !info.IsDir()
}

// MarkDirectoryForDeletion writes the deletion sentinel into dir.
//
// A missing directory is not an error: the caller marks install, settings,
// and cache directories alike, and any of them may never have been created.
func MarkDirectoryForDeletion(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, DeleteSentinelName), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return NewDeleteFailedError(dir, err)
	}
	return f.Close()
}

// TryDeleteDirectory recursively deletes dir, returning false on any failure.
//
// Failure is routine, not exceptional: the host process may still hold open
// handles into the directory. The error is logged and the caller must treat
// false as "still pending" and retry on a later pass.
func TryDeleteDirectory(dir string, logger Logger) bool {
	logger = ensureLogger(logger)

	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("Directory deletion still pending",
			"directory", dir,
			"error", err)
		return false
	}
	return true
}

// MoveDirectory relocates an entire directory tree from source to target.
//
// Same-volume moves use an atomic rename. Cross-volume moves (or any rename
// the OS refuses) fall back to a recursive copy followed by deletion of the
// source, so a package extracted to a temp area on another drive installs
// identically to a same-volume one. The fallback path is not atomic: a copy
// failure can leave both the source and a partial target behind.
func MoveDirectory(source, target string) error {
	if _, err := os.Stat(source); err != nil {
		return NewMoveFailedError(source, target, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return NewMoveFailedError(source, target, err)
	}

	if sameVolume(source, target) {
		if err := os.Rename(source, target); err == nil {
			return nil
		}
		// Rename can still fail on same-volume edge cases (bind mounts,
		// target filesystem quirks); fall through to copy+delete.
	}

	if err := copyDirectory(source, target); err != nil {
		return NewMoveFailedError(source, target, err)
	}
	if err := os.RemoveAll(source); err != nil {
		return NewMoveFailedError(source, target, err)
	}
	return nil
}

// sameVolume reports whether two paths share a filesystem root.
func sameVolume(a, b string) bool {
	return filepath.VolumeName(filepath.Clean(a)) == filepath.VolumeName(filepath.Clean(b))
}

// copyDirectory recursively copies the tree rooted at source into target,
// preserving file modes.
func copyDirectory(source, target string) error {
	return filepath.WalkDir(source, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(target, rel)

		if entry.IsDir() {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(dest, info.Mode().Perm())
		}

		return copyFile(path, dest)
	})
}

// copyFile copies a single regular file, preserving its mode.
func copyFile(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return err
	}

	in, err := os.Open(source) // #nosec G304 - paths come from a tree walk the host initiated
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// SweepMarkedDirectories deletes every immediate subdirectory of root that
// carries the deletion sentinel. Used for per-plugin settings and cache
// trees, which discovery never scans as plugin candidates. Failures are
// logged and retried on a later sweep.
func SweepMarkedDirectories(root string, logger Logger) {
	logger = ensureLogger(logger)

	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if ShouldDeleteDirectory(dir) {
			TryDeleteDirectory(dir, logger)
		}
	}
}

// PluginFolderName derives a plugin's canonical on-disk folder name.
//
// Preinstalled plugins keep the bare unit name. User-installed plugins append
// the plugin ID, guaranteeing uniqueness even when two different plugin IDs
// ship the same unit name.
func PluginFolderName(unitName, pluginID string, preinstalled bool) string {
	if preinstalled || pluginID == "" {
		return unitName
	}
	return unitName + "_" + pluginID
}
