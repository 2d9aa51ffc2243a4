// Package pluginhost manages the on-disk lifecycle of host application plugins.
// It discovers plugin directories under configured roots, resolves version
// conflicts between duplicate installs, installs and uninstalls zip-packaged
// plugins safely while the host may still hold file handles open, and loads
// each plugin's entry executable to establish which capability tags it exposes.
//
// Key Features:
//   - Filesystem discovery across preinstalled and user-installed roots
//   - Deterministic conflict resolution keeping the highest plugin version
//   - Deferred uninstall via a deletion sentinel, honored at the next scan
//   - Cross-volume safe directory relocation during package installation
//   - Subprocess code loading with handshake-based capability discovery
//   - Pluggable structured logging and go-errors based failure taxonomy
//
// Basic Usage:
//
//	manager, err := pluginhost.NewManager(pluginhost.ManagerConfig{
//	    PreinstalledRoot: "/opt/host/plugins",
//	    UserRoot:         filepath.Join(home, ".host", "plugins"),
//	    SettingsRoot:     filepath.Join(home, ".host", "plugin-settings"),
//	    CacheRoot:        filepath.Join(home, ".host", "plugin-cache"),
//	    TempRoot:         filepath.Join(home, ".host", "plugin-tmp"),
//	    Capability:       "translate",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Rebuild the registry from disk at startup
//	results := manager.LoadPlugins(ctx)
//
//	// Install a packaged plugin and query it back by capability
//	meta, err := manager.InstallPlugin(ctx, "/tmp/ocr-lens.plugpkg")
//
// Uninstallation never deletes plugin files synchronously: the plugin's
// directories are marked with a sentinel file and removed opportunistically by
// the next discovery pass, typically after the host process has restarted and
// released every file handle.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package pluginhost
