// handshake.go: Startup handshake protocol between host and plugin code units
//
// A plugin's entry executable, once launched, must print a single JSON line
// on stdout describing the code unit: protocol version, logical unit name,
// the capability tags it satisfies, and optionally the address of a service
// endpoint it brought up. The host validates that line before the plugin is
// considered loaded.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"encoding/json"
	"regexp"
)

// HandshakeConfig represents the configuration for the plugin handshake.
//
// The magic cookie is injected into the plugin process environment and is a
// UX feature, not a security one: it stops users from launching plugin
// binaries by hand and prevents the host from handshaking with arbitrary
// executables that merely happen to print JSON.
type HandshakeConfig struct {
	// ProtocolVersion is the handshake protocol version. It must match the
	// version the plugin reports or the load fails.
	ProtocolVersion uint

	// MagicCookieKey and MagicCookieValue are set in the plugin process
	// environment so the plugin can verify it was launched by the host.
	MagicCookieKey   string
	MagicCookieValue string
}

// DefaultHandshakeConfig provides a reasonable default handshake configuration.
var DefaultHandshakeConfig = HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PLUGINHOST_MAGIC_COOKIE",
	MagicCookieValue: "go-pluginhost-v1",
}

// CapabilityEnvKey names the environment variable carrying the capability tag
// the host requires from the launched code unit.
const CapabilityEnvKey = "PLUGINHOST_CAPABILITY"

// Validate checks if the HandshakeConfig is valid and complete.
func (hc *HandshakeConfig) Validate() error {
	if hc.ProtocolVersion == 0 {
		return NewHandshakeFailedError("protocol version must be greater than 0", nil)
	}
	if hc.MagicCookieKey == "" {
		return NewHandshakeFailedError("magic cookie key is required", nil)
	}
	if hc.MagicCookieValue == "" {
		return NewHandshakeFailedError("magic cookie value is required", nil)
	}
	if !isValidEnvVarName(hc.MagicCookieKey) {
		return NewHandshakeFailedError("magic cookie key must be a valid environment variable name", nil)
	}
	return nil
}

var envVarNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidEnvVarName validates an environment variable name per POSIX rules.
func isValidEnvVarName(name string) bool {
	return name != "" && envVarNamePattern.MatchString(name)
}

// HandshakeInfo is the document a code unit prints on stdout at startup.
type HandshakeInfo struct {
	ProtocolVersion uint     `json:"protocol_version"`
	UnitName        string   `json:"unit_name"`
	UnitVersion     string   `json:"unit_version,omitempty"`
	Capabilities    []string `json:"capabilities,omitempty"`

	// ServerAddress is the optional gRPC endpoint the unit brought up; when
	// present the host probes it for liveness before accepting the load.
	ServerAddress string `json:"server_address,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// HasCapability reports whether the handshake declares the given tag.
func (hi *HandshakeInfo) HasCapability(tag string) bool {
	for _, c := range hi.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// ParseHandshakeLine parses and structurally validates one handshake line
// against the host's handshake configuration.
func ParseHandshakeLine(line []byte, config HandshakeConfig) (*HandshakeInfo, error) {
	var info HandshakeInfo
	if err := json.Unmarshal(line, &info); err != nil {
		return nil, NewHandshakeFailedError("malformed handshake line", err)
	}

	if info.ProtocolVersion != config.ProtocolVersion {
		return nil, NewProtocolMismatchError(info.ProtocolVersion, config.ProtocolVersion)
	}

	return &info, nil
}
