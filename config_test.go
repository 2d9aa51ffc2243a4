// config_test.go: Tests for configuration loading and hot reload
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadManagerConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.json")
	writeConfigFile(t, path, `{
		"preinstalled_root": "/opt/host/plugins",
		"user_root": "/var/lib/host/plugins",
		"settings_root": "/var/lib/host/settings",
		"cache_root": "/var/cache/host",
		"temp_root": "/tmp/host",
		"preinstalled_ids": ["id-core"],
		"capability": "translate"
	}`)

	config, err := LoadManagerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/host/plugins", config.PreinstalledRoot)
	assert.Equal(t, "/var/lib/host/plugins", config.UserRoot)
	assert.Equal(t, []string{"id-core"}, config.PreinstalledIDs)
	assert.Equal(t, "translate", config.Capability)

	// Defaults applied by validation
	assert.Equal(t, DefaultPackageExtension, config.PackageExtension)
	assert.Equal(t, DefaultHandshakeConfig, config.Handshake)
}

func TestLoadManagerConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.yaml")
	writeConfigFile(t, path, `
preinstalled_root: /opt/host/plugins
user_root: /var/lib/host/plugins
settings_root: /var/lib/host/settings
cache_root: /var/cache/host
temp_root: /tmp/host
package_extension: pkg
`)

	config, err := LoadManagerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/host/plugins", config.PreinstalledRoot)
	// Dotless extensions are normalized
	assert.Equal(t, ".pkg", config.PackageExtension)
}

func TestLoadManagerConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadManagerConfig(filepath.Join(dir, "absent.json"))
		assertErrorCode(t, err, ErrCodeConfigNotFound)
	})

	t.Run("malformed content", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		writeConfigFile(t, path, "{{{")
		_, err := LoadManagerConfig(path)
		assertErrorCode(t, err, ErrCodeConfigParse)
	})

	t.Run("incomplete config fails validation", func(t *testing.T) {
		path := filepath.Join(dir, "partial.json")
		writeConfigFile(t, path, `{"user_root": "/var/lib/host/plugins"}`)
		_, err := LoadManagerConfig(path)
		assertErrorCode(t, err, ErrCodeInvalidManagerConfig)
	})
}

func validWatcherConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "host.json")
	writeConfigFile(t, path, `{
		"preinstalled_root": "`+filepath.ToSlash(filepath.Join(dir, "pre"))+`",
		"user_root": "`+filepath.ToSlash(filepath.Join(dir, "user"))+`",
		"settings_root": "`+filepath.ToSlash(filepath.Join(dir, "settings"))+`",
		"cache_root": "`+filepath.ToSlash(filepath.Join(dir, "cache"))+`",
		"temp_root": "`+filepath.ToSlash(filepath.Join(dir, "tmp"))+`"
	}`)
	return path
}

func TestNewConfigWatcher_Validation(t *testing.T) {
	apply := func(ManagerConfig) {}

	_, err := NewConfigWatcher("", apply, ConfigWatcherOptions{}, NewTestLogger())
	assertErrorCode(t, err, ErrCodeConfigWatcher)

	_, err = NewConfigWatcher("host.json", nil, ConfigWatcherOptions{}, NewTestLogger())
	assertErrorCode(t, err, ErrCodeConfigWatcher)
}

func TestConfigWatcher_StartAppliesInitialConfig(t *testing.T) {
	dir := t.TempDir()
	path := validWatcherConfig(t, dir)

	applied := make(chan ManagerConfig, 4)
	watcher, err := NewConfigWatcher(path, func(c ManagerConfig) { applied <- c },
		ConfigWatcherOptions{PollInterval: 50 * time.Millisecond}, NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, watcher.Start())
	defer func() { _ = watcher.Stop() }()

	// The initial configuration is applied synchronously during Start.
	select {
	case config := <-applied:
		assert.Equal(t, filepath.Join(dir, "user"), config.UserRoot)
		assert.Equal(t, DefaultPackageExtension, config.PackageExtension)
	default:
		t.Fatal("initial configuration was not applied")
	}

	// A second Start is rejected while running.
	assertErrorCode(t, watcher.Start(), ErrCodeConfigWatcher)
}

func TestConfigWatcher_StartFailsOnBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	writeConfigFile(t, path, "{{{")

	watcher, err := NewConfigWatcher(path, func(ManagerConfig) {},
		ConfigWatcherOptions{}, NewTestLogger())
	require.NoError(t, err)

	assertErrorCode(t, watcher.Start(), ErrCodeConfigParse)

	// A failed start leaves the watcher stopped; Stop is a no-op.
	assert.NoError(t, watcher.Stop())
}

func TestConfigWatcher_StopIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := validWatcherConfig(t, dir)

	watcher, err := NewConfigWatcher(path, func(ManagerConfig) {},
		ConfigWatcherOptions{PollInterval: 50 * time.Millisecond}, NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, watcher.Start())
	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}
