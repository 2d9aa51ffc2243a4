// testing_helpers_test.go: Shared fixtures for plugin host tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// assertErrorCode asserts err carries the given structured error code.
func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var hostErr *goerrors.Error
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected structured error with code %s, got %T: %v", code, err, err)
	}
	if hostErr.ErrorCode() != goerrors.ErrorCode(code) {
		t.Fatalf("error code mismatch: got %s, want %s (%v)", hostErr.ErrorCode(), code, err)
	}
}

// stubLoader satisfies CodeLoader without launching processes. It reports the
// descriptor's declared name as the unit name and a configurable capability
// set, and can be told to fail for specific plugin IDs.
type stubLoader struct {
	capabilities []string
	failFor      map[string]error
	loaded       []string
}

func newStubLoader(capabilities ...string) *stubLoader {
	if len(capabilities) == 0 {
		capabilities = []string{"translate"}
	}
	return &stubLoader{
		capabilities: capabilities,
		failFor:      make(map[string]error),
	}
}

func (s *stubLoader) Load(_ context.Context, meta *PluginMetadata, capability string) (*CapabilityHandle, error) {
	if err, exists := s.failFor[meta.PluginID]; exists {
		return nil, err
	}

	unitName := meta.Name
	if unitName == "" {
		unitName = "unit-" + meta.PluginID
	}

	handle := &CapabilityHandle{
		UnitName:     unitName,
		UnitVersion:  meta.Version,
		Capabilities: s.capabilities,
		LoadedAt:     timecache.CachedTime(),
	}
	if capability != "" && !handle.HasCapability(capability) {
		return nil, NewCapabilityNotFoundError(unitName, capability)
	}

	s.loaded = append(s.loaded, meta.PluginID)
	return handle, nil
}

// descriptorDoc mirrors the descriptor fields tests need to write.
type descriptorDoc struct {
	PluginID        string `json:"plugin_id"`
	Name            string `json:"name,omitempty"`
	Author          string `json:"author,omitempty"`
	Version         string `json:"version,omitempty"`
	ExecuteFilePath string `json:"execute_file_path"`
}

// writePluginDir creates a plugin directory under root with a JSON descriptor
// and an entry file, returning the directory path.
func writePluginDir(t *testing.T, root, folder string, doc descriptorDoc) string {
	t.Helper()

	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating plugin dir: %v", err)
	}

	if doc.ExecuteFilePath == "" {
		doc.ExecuteFilePath = "plugin.bin"
	}
	entry := filepath.Join(dir, doc.ExecuteFilePath)
	if err := os.WriteFile(entry, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("writing entry file: %v", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshaling descriptor: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), data, 0o644); err != nil {
		t.Fatalf("writing descriptor: %v", err)
	}

	return dir
}

// writePackage builds a zip plugin package at path whose root contains a
// single plugin folder with a descriptor and entry file.
func writePackage(t *testing.T, path, folder string, doc descriptorDoc) {
	t.Helper()

	if doc.ExecuteFilePath == "" {
		doc.ExecuteFilePath = "plugin.bin"
	}
	descriptor, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshaling descriptor: %v", err)
	}

	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating package file: %v", err)
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)
	files := map[string][]byte{
		folder + "/plugin.json":          descriptor,
		folder + "/" + doc.ExecuteFilePath: []byte("#!/bin/sh\n"),
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("adding archive entry %s: %v", name, err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("writing archive entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
}

// newTestManager builds a manager rooted in a temp tree with a stub loader.
func newTestManager(t *testing.T, loader CodeLoader, preinstalledIDs ...string) (*Manager, string) {
	t.Helper()

	base := t.TempDir()
	if loader == nil {
		loader = newStubLoader()
	}

	manager, err := NewManager(ManagerConfig{
		PreinstalledRoot: filepath.Join(base, "preinstalled"),
		UserRoot:         filepath.Join(base, "user"),
		SettingsRoot:     filepath.Join(base, "settings"),
		CacheRoot:        filepath.Join(base, "cache"),
		TempRoot:         filepath.Join(base, "tmp"),
		PreinstalledIDs:  preinstalledIDs,
		Capability:       "translate",
		Loader:           loader,
		Logger:           NewTestLogger(),
	})
	if err != nil {
		t.Fatalf("creating manager: %v", err)
	}

	return manager, base
}
