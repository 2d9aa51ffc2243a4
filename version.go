// version.go: Plugin version parsing and semantic ordering
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"strconv"
	"strings"
)

// PluginVersion represents a dot-separated plugin version with ordering.
//
// Plugin descriptors declare versions as dot-separated numeric segments
// ("1.10.0", "2.0", "0.3.1.7"). Segments are compared numerically, not
// lexically, so "1.10.0" orders above "1.9.9". Any segment count is accepted;
// missing trailing segments compare as zero, making "1.2" equal to "1.2.0".
//
// Example usage:
//
//	if CompareVersions("1.10.0", "1.9.9") > 0 {
//	    // keep 1.10.0
//	}
type PluginVersion struct {
	Segments []uint64 `json:"segments"`
	Original string   `json:"original"`
}

// ParsePluginVersion parses a dot-separated version string.
//
// A non-numeric segment fails parsing; callers doing conflict resolution
// should prefer CompareVersions, which never fails and degrades to lexical
// ordering for malformed input instead of dropping a candidate.
func ParsePluginVersion(versionStr string) (*PluginVersion, error) {
	if versionStr == "" {
		return nil, NewInvalidVersionStringError(versionStr, nil)
	}

	parts := strings.Split(versionStr, ".")
	segments := make([]uint64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, NewInvalidVersionStringError(versionStr, err).
				WithContext("segment", part)
		}
		segments = append(segments, value)
	}

	return &PluginVersion{Segments: segments, Original: versionStr}, nil
}

// Compare compares two plugin versions segment-wise. Returns -1, 0, or 1.
func (pv *PluginVersion) Compare(other *PluginVersion) int {
	n := len(pv.Segments)
	if len(other.Segments) > n {
		n = len(other.Segments)
	}

	for i := 0; i < n; i++ {
		a := segmentAt(pv.Segments, i)
		b := segmentAt(other.Segments, i)
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
	}
	return 0
}

// segmentAt reads a version segment, treating missing segments as zero.
func segmentAt(segments []uint64, i int) uint64 {
	if i < len(segments) {
		return segments[i]
	}
	return 0
}

// CompareVersions orders two version strings for conflict resolution.
//
// Both sides parsing as numeric versions compare segment-wise. When either
// side is malformed, a parseable version always dominates a malformed one,
// and two malformed versions fall back to lexical comparison so ordering
// stays total and deterministic. Returns -1, 0, or 1.
func CompareVersions(a, b string) int {
	va, errA := ParsePluginVersion(a)
	vb, errB := ParsePluginVersion(b)

	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
