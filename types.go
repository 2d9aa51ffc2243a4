// types.go: Common data types for the plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"time"
)

// PluginMetadata describes one installed or candidate plugin.
//
// A metadata record is created by parsing the plugin's descriptor file and is
// mutated once, on successful code load, when the unit name and capability
// handle become known. Records held by the manager's registry always have a
// non-empty PluginID and an existing PluginDirectory; exactly one record per
// PluginID is active at any time.
//
// Fields populated at parse time:
//   - PluginID: stable logical identity assigned at package authoring time
//   - Name, Author, Version: descriptor fields; Version is dot-separated
//     numeric segments ordered by CompareVersions
//   - ExecuteFilePath: absolute path to the loadable entry executable
//   - PluginDirectory: the directory the descriptor was parsed from
//   - Preinstalled: whether the directory lies under the preinstalled root
//
// Fields populated on successful load:
//   - UnitName: logical name reported by the loaded code unit's handshake
//   - Handle: opaque capability handle for querying and shutdown
//   - SettingsDirectory, CacheDirectory: derived per-plugin state paths
//   - LoadedAt: registration timestamp
type PluginMetadata struct {
	PluginID        string `json:"plugin_id" yaml:"plugin_id"`
	Name            string `json:"name,omitempty" yaml:"name,omitempty"`
	Author          string `json:"author,omitempty" yaml:"author,omitempty"`
	Version         string `json:"version,omitempty" yaml:"version,omitempty"`
	ExecuteFilePath string `json:"execute_file_path" yaml:"execute_file_path"`

	// Derived, never persisted to the descriptor
	PluginDirectory   string `json:"-" yaml:"-"`
	SettingsDirectory string `json:"-" yaml:"-"`
	CacheDirectory    string `json:"-" yaml:"-"`
	Preinstalled      bool   `json:"-" yaml:"-"`

	// Set only after a successful load
	UnitName string            `json:"-" yaml:"-"`
	Handle   *CapabilityHandle `json:"-" yaml:"-"`
	LoadedAt time.Time         `json:"-" yaml:"-"`
}

// DisplayName returns the best human-readable name available for logging,
// falling back through Name, UnitName, and PluginID.
func (m *PluginMetadata) DisplayName() string {
	switch {
	case m == nil:
		return "<unknown plugin>"
	case m.Name != "":
		return m.Name
	case m.UnitName != "":
		return m.UnitName
	default:
		return m.PluginID
	}
}

// FolderName returns the plugin's canonical on-disk folder name.
//
// Preinstalled plugins use the bare unit name; user-installed plugins append
// the plugin ID so two plugins sharing a unit name cannot collide.
func (m *PluginMetadata) FolderName() string {
	name := m.UnitName
	if name == "" {
		name = m.Name
	}
	return PluginFolderName(name, m.PluginID, m.Preinstalled)
}

// PluginLoadResult is the transient per-item outcome of a discovery or load
// pass. It exists so a whole-directory scan can report every outcome without
// aborting the batch; it is never persisted.
type PluginLoadResult struct {
	Success     bool            `json:"success"`
	DisplayName string          `json:"display_name"`
	Directory   string          `json:"directory,omitempty"`
	Metadata    *PluginMetadata `json:"-"`
	Message     string          `json:"message,omitempty"`
	Err         error           `json:"-"`
}

// loadSuccess builds a successful result for a registered plugin.
func loadSuccess(meta *PluginMetadata) PluginLoadResult {
	return PluginLoadResult{
		Success:     true,
		DisplayName: meta.DisplayName(),
		Directory:   meta.PluginDirectory,
		Metadata:    meta,
	}
}

// loadFailure builds a failed result preserving the display name for logging.
func loadFailure(displayName, dir, message string, err error) PluginLoadResult {
	return PluginLoadResult{
		Success:     false,
		DisplayName: displayName,
		Directory:   dir,
		Message:     message,
		Err:         err,
	}
}
