// discovery.go: Plugin discovery and version conflict resolution
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"os"
	"path/filepath"
	"sort"
)

// Discoverer scans plugin roots, deduplicates candidates by plugin identity,
// and loads each surviving candidate's code unit.
//
// The scan is resilient by construction: one corrupt or unloadable plugin
// directory never prevents the rest of the batch from loading. Per-item
// outcomes are reported as PluginLoadResult values; only the caller decides
// what a failure means.
//
// Directories carrying the deletion sentinel are never treated as live
// candidates. Deletion is attempted opportunistically during the scan; when
// it fails (files still locked by a running host) the directory is simply
// skipped and retried on a later pass.
type Discoverer struct {
	store      *MetadataStore
	loader     CodeLoader
	capability string
	logger     Logger
}

// NewDiscoverer creates a discoverer. capability is the tag every loaded
// unit must satisfy; an empty tag accepts any unit.
func NewDiscoverer(store *MetadataStore, loader CodeLoader, capability string, logger Logger) *Discoverer {
	return &Discoverer{
		store:      store,
		loader:     loader,
		capability: capability,
		logger:     ensureLogger(logger),
	}
}

// DiscoverAll scans the immediate subdirectories of every root and returns a
// per-candidate result list.
//
// The passes, in order: sentinel cleanup, descriptor parsing, grouping by
// plugin ID with the highest version kept, and code loading of each unique
// survivor. Running it twice over an unchanged tree yields the same set of
// plugin IDs and chosen versions.
func (d *Discoverer) DiscoverAll(ctx context.Context, roots []string) []PluginLoadResult {
	var results []PluginLoadResult

	candidates := d.collectCandidates(roots, &results)
	survivors := d.resolveConflicts(candidates)

	for _, meta := range survivors {
		results = append(results, d.loadCandidate(ctx, meta))
	}

	return results
}

// collectCandidates walks each root's immediate subdirectories, handles
// pending deletions, and parses descriptors. Parse rejections are appended to
// results as failures; directories without a descriptor are skipped silently.
func (d *Discoverer) collectCandidates(roots []string, results *[]PluginLoadResult) []*PluginMetadata {
	var candidates []*PluginMetadata

	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			d.logger.Debug("Plugin root not readable, skipping",
				"root", root,
				"error", err)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			dir := filepath.Join(root, entry.Name())
			if d.handlePendingDeletion(dir) {
				continue
			}

			meta, err := d.store.Parse(dir)
			if err != nil {
				*results = append(*results,
					loadFailure(entry.Name(), dir, "invalid plugin descriptor", err))
				continue
			}
			if meta == nil {
				continue // Not a plugin directory
			}

			candidates = append(candidates, meta)
		}
	}

	return candidates
}

// handlePendingDeletion reports whether dir is slated for removal. Marked
// directories are deleted when possible and skipped either way.
func (d *Discoverer) handlePendingDeletion(dir string) bool {
	if !ShouldDeleteDirectory(dir) {
		return false
	}

	if TryDeleteDirectory(dir, d.logger) {
		d.logger.Info("Removed plugin directory pending deletion", "directory", dir)
	} else {
		d.logger.Warn("Plugin directory pending deletion is still locked, skipping",
			"directory", dir)
	}
	return true
}

// resolveConflicts groups candidates by plugin ID and keeps the entry with
// the highest version in each group. Equal versions tie-break on lexical
// plugin-directory order so resolution does not depend on encounter order.
// Losing duplicates are logged and never loaded.
func (d *Discoverer) resolveConflicts(candidates []*PluginMetadata) []*PluginMetadata {
	chosen := make(map[string]*PluginMetadata)

	for _, meta := range candidates {
		current, exists := chosen[meta.PluginID]
		if !exists {
			chosen[meta.PluginID] = meta
			continue
		}

		keep, drop := current, meta
		cmp := CompareVersions(meta.Version, current.Version)
		if cmp > 0 || (cmp == 0 && meta.PluginDirectory < current.PluginDirectory) {
			keep, drop = meta, current
		}
		chosen[meta.PluginID] = keep

		d.logger.Warn("Duplicate plugin skipped",
			"plugin_id", drop.PluginID,
			"skipped_version", drop.Version,
			"skipped_directory", drop.PluginDirectory,
			"kept_version", keep.Version,
			"kept_directory", keep.PluginDirectory)
	}

	survivors := make([]*PluginMetadata, 0, len(chosen))
	for _, meta := range chosen {
		survivors = append(survivors, meta)
	}
	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].PluginID < survivors[j].PluginID
	})

	return survivors
}

// loadCandidate loads one surviving candidate's code unit and wraps the
// outcome, mutating the metadata on success.
func (d *Discoverer) loadCandidate(ctx context.Context, meta *PluginMetadata) PluginLoadResult {
	handle, err := d.loader.Load(ctx, meta, d.capability)
	if err != nil {
		d.logger.Error("Plugin code load failed",
			"plugin_id", meta.PluginID,
			"display_name", meta.DisplayName(),
			"directory", meta.PluginDirectory,
			"error", err)
		return loadFailure(meta.DisplayName(), meta.PluginDirectory, "code load failed", err)
	}

	meta.UnitName = handle.UnitName
	meta.Handle = handle
	meta.LoadedAt = handle.LoadedAt

	return loadSuccess(meta)
}
