// types_test.go: Tests for common data types
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"testing"
)

func TestPluginMetadataDisplayName(t *testing.T) {
	testCases := []struct {
		name string
		meta *PluginMetadata
		want string
	}{
		{"nil metadata", nil, "<unknown plugin>"},
		{"descriptor name wins", &PluginMetadata{Name: "OCR Lens", UnitName: "OcrLens.Core", PluginID: "id-1"}, "OCR Lens"},
		{"unit name second", &PluginMetadata{UnitName: "OcrLens.Core", PluginID: "id-1"}, "OcrLens.Core"},
		{"plugin id last", &PluginMetadata{PluginID: "id-1"}, "id-1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.meta.DisplayName(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPluginMetadataFolderName(t *testing.T) {
	testCases := []struct {
		name string
		meta *PluginMetadata
		want string
	}{
		{
			"unit name preferred over descriptor name",
			&PluginMetadata{UnitName: "OcrLens.Core", Name: "OCR Lens", PluginID: "id-1"},
			"OcrLens.Core_id-1",
		},
		{
			"descriptor name fallback",
			&PluginMetadata{Name: "OCR Lens", PluginID: "id-1"},
			"OCR Lens_id-1",
		},
		{
			"preinstalled stays bare",
			&PluginMetadata{UnitName: "Core", PluginID: "id-1", Preinstalled: true},
			"Core",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.meta.FolderName(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
