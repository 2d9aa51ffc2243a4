// manager.go: Plugin lifecycle orchestration and the active plugin registry
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
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
)

// DefaultPackageExtension is the file extension denoting a plugin package.
const DefaultPackageExtension = ".plugpkg"

// ManagerConfig configures a plugin lifecycle manager.
//
// The five roots are all required and are created at construction when
// absent. PreinstalledIDs lists the plugin IDs that install under the
// preinstalled root instead of the user root.
type ManagerConfig struct {
	// Filesystem layout
	PreinstalledRoot string `json:"preinstalled_root" yaml:"preinstalled_root"`
	UserRoot         string `json:"user_root" yaml:"user_root"`
	SettingsRoot     string `json:"settings_root" yaml:"settings_root"`
	CacheRoot        string `json:"cache_root" yaml:"cache_root"`
	TempRoot         string `json:"temp_root" yaml:"temp_root"`

	// Identity and packaging
	PreinstalledIDs  []string `json:"preinstalled_ids,omitempty" yaml:"preinstalled_ids,omitempty"`
	PackageExtension string   `json:"package_extension,omitempty" yaml:"package_extension,omitempty"`

	// Capability is the tag every loaded code unit must satisfy; empty
	// accepts any unit.
	Capability string `json:"capability,omitempty" yaml:"capability,omitempty"`

	// Handshake overrides DefaultHandshakeConfig when non-zero.
	Handshake HandshakeConfig `json:"-" yaml:"-"`

	// Collaborators
	Loader       CodeLoader           `json:"-" yaml:"-"`
	Localization LocalizationNotifier `json:"-" yaml:"-"`
	Logger       Logger               `json:"-" yaml:"-"`
}

// Manager owns the in-memory registry of active plugins and sequences the
// discovery, metadata, filesystem, and loading layers.
//
// The registry is guarded for concurrent reads, but InstallPlugin,
// UninstallPlugin, and LoadPlugins are foreground user-triggered operations
// and callers are expected to serialize them; concurrent installs of
// packages sharing a base name can race on the shared temp-extraction root.
type Manager struct {
	config          ManagerConfig
	logger          Logger
	loader          CodeLoader
	store           *MetadataStore
	discoverer      *Discoverer
	localization    LocalizationNotifier
	preinstalledIDs map[string]struct{}

	mu       sync.RWMutex
	registry map[string]*PluginMetadata

	shutdown atomic.Bool
}

// NewManager validates the configuration, creates every configured root
// directory, and returns a ready manager. No plugins are loaded until
// LoadPlugins is called.
func NewManager(config ManagerConfig) (*Manager, error) {
	if err := validateManagerConfig(&config); err != nil {
		return nil, err
	}

	logger := ensureLogger(config.Logger)

	for _, root := range []string{
		config.PreinstalledRoot, config.UserRoot, config.SettingsRoot,
		config.CacheRoot, config.TempRoot,
	} {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, NewInvalidManagerConfigError("cannot create root directory " + root)
		}
	}

	loader := config.Loader
	if loader == nil {
		var err error
		loader, err = NewSubprocessLoader(config.Handshake, logger)
		if err != nil {
			return nil, err
		}
	}

	localization := config.Localization
	if localization == nil {
		localization = noopLocalization{}
	}

	preIDs := make(map[string]struct{}, len(config.PreinstalledIDs))
	for _, id := range config.PreinstalledIDs {
		preIDs[id] = struct{}{}
	}

	store := NewMetadataStore(config.PreinstalledRoot, logger)

	return &Manager{
		config:          config,
		logger:          logger,
		loader:          loader,
		store:           store,
		discoverer:      NewDiscoverer(store, loader, config.Capability, logger),
		localization:    localization,
		preinstalledIDs: preIDs,
		registry:        make(map[string]*PluginMetadata),
	}, nil
}

// validateManagerConfig checks required fields and applies defaults.
func validateManagerConfig(config *ManagerConfig) error {
	roots := map[string]string{
		"preinstalled root": config.PreinstalledRoot,
		"user root":         config.UserRoot,
		"settings root":     config.SettingsRoot,
		"cache root":        config.CacheRoot,
		"temp root":         config.TempRoot,
	}
	for name, root := range roots {
		if strings.TrimSpace(root) == "" {
			return NewInvalidManagerConfigError(name + " is required")
		}
	}

	if config.PackageExtension == "" {
		config.PackageExtension = DefaultPackageExtension
	}
	if !strings.HasPrefix(config.PackageExtension, ".") {
		config.PackageExtension = "." + config.PackageExtension
	}

	if config.Handshake == (HandshakeConfig{}) {
		config.Handshake = DefaultHandshakeConfig
	}

	return nil
}

// LoadPlugins merges a fresh discovery pass into the active registry.
//
// Discovery runs over the preinstalled and user roots; every successful
// result replaces any previous registry entry for the same plugin ID, and an
// aggregate summary is logged. Entries for plugins that vanished from disk
// are not evicted here; removal goes through UninstallPlugin. Per-item
// failures are returned, never raised.
func (m *Manager) LoadPlugins(ctx context.Context) []PluginLoadResult {
	started := timecache.CachedTime()

	// Per-plugin state trees are never plugin candidates, so pending
	// deletions there are swept here rather than by discovery.
	SweepMarkedDirectories(m.config.SettingsRoot, m.logger)
	SweepMarkedDirectories(m.config.CacheRoot, m.logger)

	results := m.discoverer.DiscoverAll(ctx, []string{
		m.config.PreinstalledRoot,
		m.config.UserRoot,
	})

	succeeded := 0
	for _, result := range results {
		if !result.Success {
			m.logger.Warn("Plugin load failed",
				"display_name", result.DisplayName,
				"directory", result.Directory,
				"message", result.Message,
				"error", result.Err)
			continue
		}
		m.register(result.Metadata)
		succeeded++
	}

	m.logger.Info("Plugin load pass completed",
		"total", len(results),
		"succeeded", succeeded,
		"failed", len(results)-succeeded,
		"duration", time.Since(started))

	return results
}

// InstallPlugin installs a single plugin package through a staged pipeline:
// validate, extract, parse, duplicate check, relocate, load and register.
//
// The pipeline short-circuits on the first failure with an error naming the
// failing stage. A failure after relocation leaves the relocated directory
// in place for a future LoadPlugins pass or manual cleanup; there is no
// automatic rollback.
func (m *Manager) InstallPlugin(ctx context.Context, packagePath string) (*PluginMetadata, error) {
	if err := m.validatePackage(packagePath); err != nil {
		return nil, err
	}

	tempDir, extractedDir, err := m.extractToTemp(packagePath)
	if err != nil {
		return nil, err
	}

	meta, err := m.parseExtracted(extractedDir)
	if err != nil {
		return nil, err
	}

	if installed, exists := m.GetPlugin(meta.PluginID); exists {
		return nil, NewDuplicatePluginIDError(meta.PluginID, installed.Version)
	}

	targetDir, err := m.relocate(extractedDir, meta)
	if err != nil {
		return nil, err
	}

	// When the package nests its plugin folder, relocation consumes only the
	// inner directory; drop the now-empty wrapper.
	if err := os.RemoveAll(tempDir); err != nil {
		m.logger.Warn("Temp extraction directory cleanup failed",
			"path", tempDir,
			"error", err)
	}

	return m.loadAndRegister(ctx, targetDir)
}

// validatePackage checks that the package file exists and carries the
// configured plugin-package extension.
func (m *Manager) validatePackage(packagePath string) error {
	if strings.TrimSpace(packagePath) == "" {
		return NewEmptyPackagePathError()
	}

	info, err := os.Stat(packagePath)
	if err != nil || info.IsDir() {
		return NewInvalidPackagePathError(packagePath, err)
	}

	if !strings.EqualFold(filepath.Ext(packagePath), m.config.PackageExtension) {
		return NewWrongPackageExtensionError(packagePath, m.config.PackageExtension)
	}

	return nil
}

// extractToTemp unpacks the package into the temp-extraction root, clearing
// any stale directory left by a previous attempt with the same base name.
// It returns the extraction root and the plugin directory inside it, which
// coincide when the package carries its descriptor at the archive root.
func (m *Manager) extractToTemp(packagePath string) (string, string, error) {
	base := strings.TrimSuffix(filepath.Base(packagePath), filepath.Ext(packagePath))
	tempDir := filepath.Join(m.config.TempRoot, base)

	if _, err := os.Stat(tempDir); err == nil {
		if !TryDeleteDirectory(tempDir, m.logger) {
			return "", "", NewExtractFailedError(packagePath,
				NewDeleteFailedError(tempDir, nil))
		}
	}

	if err := ExtractPackage(packagePath, tempDir); err != nil {
		return "", "", err
	}

	pluginDir, err := resolveExtractedPluginDir(tempDir)
	if err != nil {
		return "", "", err
	}
	return tempDir, pluginDir, nil
}

// parseExtracted parses the descriptor of a freshly extracted package.
func (m *Manager) parseExtracted(extractedDir string) (*PluginMetadata, error) {
	meta, err := m.store.Parse(extractedDir)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, NewDescriptorNotFoundError(extractedDir)
	}
	return meta, nil
}

// relocate moves the extracted plugin directory into its permanent root:
// the preinstalled root when the plugin's ID belongs to the preinstalled
// set, the user root otherwise. User installs are suffixed with the plugin
// ID so distinct plugins sharing a folder name cannot collide.
func (m *Manager) relocate(extractedDir string, meta *PluginMetadata) (string, error) {
	extractedName := filepath.Base(extractedDir)

	_, preinstalled := m.preinstalledIDs[meta.PluginID]
	root := m.config.UserRoot
	folderName := PluginFolderName(extractedName, meta.PluginID, false)
	if preinstalled {
		root = m.config.PreinstalledRoot
		folderName = extractedName
	}

	target := filepath.Join(root, folderName)
	if _, err := os.Stat(target); err == nil {
		// A leftover marked for deletion may be reclaimed; anything else
		// occupying the slot is a hard stop.
		if !ShouldDeleteDirectory(target) || !TryDeleteDirectory(target, m.logger) {
			return "", NewRelocateCollisionError(target)
		}
	}

	if err := MoveDirectory(extractedDir, target); err != nil {
		return "", err
	}

	m.logger.Info("Plugin package relocated",
		"plugin_id", meta.PluginID,
		"target", target,
		"preinstalled", preinstalled)

	return target, nil
}

// loadAndRegister re-parses the relocated directory, loads its code unit,
// registers the plugin, and notifies the localization collaborator so any
// bundled language resources become available immediately.
func (m *Manager) loadAndRegister(ctx context.Context, dir string) (*PluginMetadata, error) {
	meta, err := m.parseExtracted(dir)
	if err != nil {
		return nil, err
	}

	handle, err := m.loader.Load(ctx, meta, m.config.Capability)
	if err != nil {
		return nil, err
	}

	meta.UnitName = handle.UnitName
	meta.Handle = handle
	meta.LoadedAt = handle.LoadedAt
	m.register(meta)

	if err := m.localization.LoadLanguageResources(dir); err != nil {
		m.logger.Warn("Language resource load failed",
			"plugin_id", meta.PluginID,
			"directory", dir,
			"error", err)
	}

	m.logger.Info("Plugin installed",
		"plugin_id", meta.PluginID,
		"display_name", meta.DisplayName(),
		"version", meta.Version,
		"directory", dir)

	return meta, nil
}

// UninstallPlugin marks the plugin's install, settings, and cache
// directories for deferred deletion and removes the registry entry.
//
// Nothing is deleted synchronously: the host may still hold file handles or
// loaded-code references for the remainder of the current run. The marked
// directories are removed by the next discovery pass, typically after a
// restart. Returns false only when the install directory could not be
// marked; settings and cache markings are best-effort.
func (m *Manager) UninstallPlugin(meta *PluginMetadata) bool {
	if meta == nil || meta.PluginID == "" {
		return false
	}

	if meta.Handle != nil {
		if err := meta.Handle.Close(); err != nil {
			m.logger.Warn("Plugin handle close failed",
				"plugin_id", meta.PluginID,
				"error", err)
		}
	}

	marked := true
	if err := MarkDirectoryForDeletion(meta.PluginDirectory); err != nil {
		m.logger.Error("Failed to mark plugin directory for deletion",
			"plugin_id", meta.PluginID,
			"directory", meta.PluginDirectory,
			"error", err)
		marked = false
	}
	for _, dir := range []string{meta.SettingsDirectory, meta.CacheDirectory} {
		if dir == "" {
			continue
		}
		if err := MarkDirectoryForDeletion(dir); err != nil {
			m.logger.Warn("Failed to mark plugin state directory for deletion",
				"plugin_id", meta.PluginID,
				"directory", dir,
				"error", err)
		}
	}

	m.mu.Lock()
	delete(m.registry, meta.PluginID)
	m.mu.Unlock()

	m.logger.Info("Plugin uninstalled",
		"plugin_id", meta.PluginID,
		"display_name", meta.DisplayName(),
		"pending_deletion", meta.PluginDirectory)

	return marked
}

// UninstallPluginByID resolves an active plugin by ID and uninstalls it.
func (m *Manager) UninstallPluginByID(pluginID string) error {
	meta, exists := m.GetPlugin(pluginID)
	if !exists {
		return NewPluginNotRegisteredError(pluginID)
	}

	if !m.UninstallPlugin(meta) {
		return NewDeleteFailedError(meta.PluginDirectory, nil)
	}
	return nil
}

// CleanupTempFiles best-effort deletes everything under the temp-extraction
// root. Failures are logged and never raised; this is routine maintenance.
func (m *Manager) CleanupTempFiles() {
	entries, err := os.ReadDir(m.config.TempRoot)
	if err != nil {
		m.logger.Debug("Temp root not readable during cleanup",
			"temp_root", m.config.TempRoot,
			"error", err)
		return
	}

	for _, entry := range entries {
		path := filepath.Join(m.config.TempRoot, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn("Temp entry cleanup failed",
				"path", path,
				"error", err)
		}
	}
}

// GetPlugin returns the active registry entry for a plugin ID.
func (m *Manager) GetPlugin(pluginID string) (*PluginMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, exists := m.registry[pluginID]
	return meta, exists
}

// ListPlugins returns the active plugins ordered by plugin ID.
func (m *Manager) ListPlugins() []*PluginMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*PluginMetadata, 0, len(m.registry))
	for _, meta := range m.registry {
		plugins = append(plugins, meta)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].PluginID < plugins[j].PluginID
	})
	return plugins
}

// PluginsWithCapability returns the active plugins whose loaded unit
// satisfies the given capability tag, ordered by plugin ID.
func (m *Manager) PluginsWithCapability(tag string) []*PluginMetadata {
	var matches []*PluginMetadata
	for _, meta := range m.ListPlugins() {
		if meta.Handle != nil && meta.Handle.HasCapability(tag) {
			matches = append(matches, meta)
		}
	}
	return matches
}

// Shutdown closes every live plugin handle and clears the registry.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.shutdown.CompareAndSwap(false, true) {
		return NewInvalidManagerConfigError("manager already shut down")
	}

	m.logger.Info("Shutting down plugin manager")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, meta := range m.registry {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if meta.Handle != nil {
			if err := meta.Handle.Close(); err != nil {
				m.logger.Warn("Plugin handle close failed during shutdown",
					"plugin_id", meta.PluginID,
					"error", err)
			}
		}
	}
	m.registry = make(map[string]*PluginMetadata)

	m.logger.Info("Plugin manager shutdown complete")
	return nil
}

// register derives the plugin's per-plugin state paths and stores the entry,
// replacing (and closing) any previous entry for the same plugin ID.
func (m *Manager) register(meta *PluginMetadata) {
	folder := meta.FolderName()
	meta.SettingsDirectory = filepath.Join(m.config.SettingsRoot, folder)
	meta.CacheDirectory = filepath.Join(m.config.CacheRoot, folder)

	m.mu.Lock()
	previous, existed := m.registry[meta.PluginID]
	m.registry[meta.PluginID] = meta
	m.mu.Unlock()

	if existed && previous != meta && previous.Handle != nil && previous.Handle != meta.Handle {
		_ = previous.Handle.Close()
	}

	m.logger.Debug("Plugin registered",
		"plugin_id", meta.PluginID,
		"display_name", meta.DisplayName(),
		"version", meta.Version,
		"unit_name", meta.UnitName,
		"preinstalled", meta.Preinstalled)
}
