// config_watcher.go: Hot reload of the host configuration file via Argus
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// ConfigWatcherOptions tunes the underlying file watcher.
type ConfigWatcherOptions struct {
	// PollInterval between file checks; defaults to 2s, which is plenty for
	// a configuration that changes on user action.
	PollInterval time.Duration
}

// ConfigWatcher watches the host configuration file and delivers re-parsed
// manager configurations to an apply callback.
//
// The watcher only parses and validates; what "applying" means (rebuilding a
// manager, re-running LoadPlugins) is the host's decision inside the
// callback. A file change that fails to parse is logged and otherwise
// ignored, keeping the last good configuration in effect.
type ConfigWatcher struct {
	configPath string
	watcher    *argus.Watcher
	apply      func(ManagerConfig)
	logger     Logger
	running    atomic.Bool
}

// NewConfigWatcher creates a watcher for the given configuration file.
func NewConfigWatcher(configPath string, apply func(ManagerConfig), options ConfigWatcherOptions, logger Logger) (*ConfigWatcher, error) {
	if configPath == "" {
		return nil, NewConfigWatcherError("config path is required", nil)
	}
	if apply == nil {
		return nil, NewConfigWatcherError("apply callback is required", nil)
	}

	logger = ensureLogger(logger)

	pollInterval := options.PollInterval
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}

	watcher := argus.New(argus.Config{
		PollInterval:         pollInterval,
		MaxWatchedFiles:      5,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, filepath string) {
			logger.Error("Host config file watching error",
				"error", err,
				"file", filepath)
		},
	})

	return &ConfigWatcher{
		configPath: configPath,
		watcher:    watcher,
		apply:      apply,
		logger:     logger,
	}, nil
}

// Start loads and applies the current configuration, then begins watching
// the file for changes.
func (w *ConfigWatcher) Start() error {
	if !w.running.CompareAndSwap(false, true) {
		return NewConfigWatcherError("watcher already started", nil)
	}

	config, err := LoadManagerConfig(w.configPath)
	if err != nil {
		w.running.Store(false)
		return err
	}
	w.apply(config)

	if err := w.watcher.Watch(w.configPath, w.handleChange); err != nil {
		w.running.Store(false)
		return NewConfigWatcherError("failed to watch config file", err)
	}
	if err := w.watcher.Start(); err != nil {
		w.running.Store(false)
		return NewConfigWatcherError("failed to start watcher", err)
	}

	w.logger.Info("Host config watcher started", "config_path", w.configPath)
	return nil
}

// Stop stops watching the configuration file.
func (w *ConfigWatcher) Stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}

	if err := w.watcher.Stop(); err != nil {
		return NewConfigWatcherError("failed to stop watcher", err)
	}

	w.logger.Info("Host config watcher stopped", "config_path", w.configPath)
	return nil
}

// handleChange re-parses the configuration on a change event.
func (w *ConfigWatcher) handleChange(event argus.ChangeEvent) {
	if event.IsDelete {
		w.logger.Warn("Host config file was deleted, keeping last good configuration",
			"path", event.Path)
		return
	}

	config, err := LoadManagerConfig(event.Path)
	if err != nil {
		w.logger.Error("Host config reload failed, keeping last good configuration",
			"path", event.Path,
			"error", err)
		return
	}

	w.logger.Info("Host config reloaded", "path", event.Path)
	w.apply(config)
}
