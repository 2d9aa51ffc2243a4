// metadata.go: Plugin descriptor parsing and derived-path computation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// descriptorFileNames are the descriptor files recognized inside a plugin
// directory, checked in order; the first one present wins.
var descriptorFileNames = []string{"plugin.json", "plugin.yaml", "plugin.yml"}

// MetadataStore parses plugin descriptors into PluginMetadata records.
//
// Parsing is pure with respect to its inputs except for logging: the store
// never mutates the filesystem. Directories without a descriptor yield nil so
// a bulk scan can simply skip them; directories whose descriptor is present
// but unusable yield a structured error for the scan to report.
type MetadataStore struct {
	preinstalledRoot string
	logger           Logger
}

// NewMetadataStore creates a metadata store. preinstalledRoot marks which
// parsed directories count as preinstalled plugins.
func NewMetadataStore(preinstalledRoot string, logger Logger) *MetadataStore {
	return &MetadataStore{
		preinstalledRoot: preinstalledRoot,
		logger:           ensureLogger(logger),
	}
}

// Parse reads the descriptor inside dir and returns the plugin's metadata.
//
// A directory with no descriptor at all is not a candidate and yields
// (nil, nil) so bulk scans can skip it without noise. A directory whose
// descriptor is present but unusable (malformed document, no plugin ID,
// absent entry executable) yields a structured error; the rejection is also
// logged here, once, at the layer that knows the reason.
func (s *MetadataStore) Parse(dir string) (*PluginMetadata, error) {
	descriptorPath, ok := s.findDescriptor(dir)
	if !ok {
		return nil, nil
	}

	meta, err := s.parseDescriptorFile(descriptorPath)
	if err != nil {
		s.logger.Error("Plugin descriptor rejected",
			"descriptor", descriptorPath,
			"error", err)
		return nil, err
	}

	if meta.PluginID == "" {
		err := NewMissingPluginIDError(descriptorPath)
		s.logger.Error("Plugin descriptor rejected",
			"descriptor", descriptorPath,
			"error", err)
		return nil, err
	}

	meta.ExecuteFilePath = s.resolveEntryPath(dir, meta.ExecuteFilePath)
	if !entryFileExists(meta.ExecuteFilePath) {
		err := NewMissingEntryFileError(meta.PluginID, meta.ExecuteFilePath)
		s.logger.Error("Plugin descriptor rejected",
			"descriptor", descriptorPath,
			"error", err)
		return nil, err
	}

	meta.PluginDirectory = dir
	meta.Preinstalled = s.isPreinstalledDir(dir)

	s.logger.Debug("Plugin descriptor parsed",
		"plugin_id", meta.PluginID,
		"name", meta.Name,
		"version", meta.Version,
		"directory", dir)

	return meta, nil
}

// findDescriptor locates the descriptor file inside dir. A missing directory
// or descriptor is a silent absence, not an error.
func (s *MetadataStore) findDescriptor(dir string) (string, bool) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", false
	}

	for _, name := range descriptorFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// parseDescriptorFile parses a descriptor document, trying JSON first and
// falling back to YAML on the same bytes.
func (s *MetadataStore) parseDescriptorFile(path string) (*PluginMetadata, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the scan the host initiated
	if err != nil {
		return nil, NewDescriptorParseError(path, err)
	}

	var meta PluginMetadata
	if jsonErr := json.Unmarshal(data, &meta); jsonErr != nil {
		if yamlErr := yaml.Unmarshal(data, &meta); yamlErr != nil {
			return nil, NewDescriptorParseError(path, yamlErr)
		}
	}

	return &meta, nil
}

// resolveEntryPath makes a declared entry path absolute relative to the
// plugin's own directory.
func (s *MetadataStore) resolveEntryPath(dir, entryPath string) string {
	entryPath = strings.TrimSpace(entryPath)
	if entryPath == "" || filepath.IsAbs(entryPath) {
		return entryPath
	}
	return filepath.Join(dir, entryPath)
}

// isPreinstalledDir reports whether dir lies under the preinstalled root.
func (s *MetadataStore) isPreinstalledDir(dir string) bool {
	if s.preinstalledRoot == "" {
		return false
	}

	rel, err := filepath.Rel(s.preinstalledRoot, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// entryFileExists checks that the declared entry executable is a regular file.
func entryFileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
