// errors.go: structured error definitions for the plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"github.com/agilira/go-errors"
)

// Error codes for the plugin host
const (
	// Validation errors (1000-1099)
	ErrCodeEmptyPackagePath     = "HOST_1001"
	ErrCodeInvalidPackagePath   = "HOST_1002"
	ErrCodeWrongPackageExt      = "HOST_1003"
	ErrCodeDuplicatePluginID    = "HOST_1004"
	ErrCodeInvalidManagerConfig = "HOST_1005"

	// Descriptor and metadata errors (2000-2099)
	ErrCodeDescriptorNotFound   = "HOST_2001"
	ErrCodeDescriptorParse      = "HOST_2002"
	ErrCodeMissingPluginID      = "HOST_2003"
	ErrCodeMissingEntryFile     = "HOST_2004"
	ErrCodeInvalidVersionString = "HOST_2005"

	// Code loading errors (3000-3099)
	ErrCodeEntryStartFailed    = "HOST_3001"
	ErrCodeHandshakeFailed     = "HOST_3002"
	ErrCodeUnitNameMissing     = "HOST_3003"
	ErrCodeCapabilityNotFound  = "HOST_3004"
	ErrCodeEndpointUnhealthy   = "HOST_3005"
	ErrCodeProtocolMismatch    = "HOST_3006"
	ErrCodePluginNotRegistered = "HOST_3007"

	// Filesystem and install errors (4000-4099)
	ErrCodeExtractFailed   = "HOST_4001"
	ErrCodeUnsafeZipEntry  = "HOST_4002"
	ErrCodeMoveFailed      = "HOST_4003"
	ErrCodeDeleteFailed    = "HOST_4004"
	ErrCodeRelocateCollide = "HOST_4005"

	// Configuration errors (5000-5099)
	ErrCodeConfigNotFound   = "HOST_5001"
	ErrCodeConfigParse      = "HOST_5002"
	ErrCodeConfigValidation = "HOST_5003"
	ErrCodeConfigWatcher    = "HOST_5004"
)

// Validation error constructors

func NewEmptyPackagePathError() *errors.Error {
	return errors.New(ErrCodeEmptyPackagePath, "Empty package path").
		WithUserMessage("A plugin package path is required").
		WithSeverity("error")
}

func NewInvalidPackagePathError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeInvalidPackagePath, "Invalid package path").
		WithUserMessage("The plugin package file could not be found").
		WithContext("package_path", path).
		WithSeverity("error")
}

func NewWrongPackageExtensionError(path, wantExt string) *errors.Error {
	return errors.New(ErrCodeWrongPackageExt, "Wrong package extension").
		WithUserMessage("The file is not a plugin package").
		WithContext("package_path", path).
		WithContext("expected_extension", wantExt).
		WithSeverity("error")
}

func NewDuplicatePluginIDError(pluginID, installedVersion string) *errors.Error {
	return errors.New(ErrCodeDuplicatePluginID, "Duplicate plugin ID").
		WithUserMessage("A plugin with this ID is already installed; uninstall version " +
			installedVersion + " first").
		WithContext("plugin_id", pluginID).
		WithContext("installed_version", installedVersion).
		WithSeverity("error")
}

func NewInvalidManagerConfigError(message string) *errors.Error {
	return errors.New(ErrCodeInvalidManagerConfig, "Invalid manager configuration: "+message).
		WithUserMessage("Plugin manager configuration is incomplete").
		WithSeverity("error")
}

// Descriptor and metadata error constructors

func NewDescriptorNotFoundError(dir string) *errors.Error {
	return errors.New(ErrCodeDescriptorNotFound, "Plugin descriptor not found").
		WithUserMessage("The directory does not contain a plugin descriptor").
		WithContext("plugin_directory", dir).
		WithSeverity("warning")
}

func NewDescriptorParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDescriptorParse, "Plugin descriptor parse error").
		WithUserMessage("The plugin descriptor is malformed").
		WithContext("descriptor_path", path).
		WithSeverity("error")
}

func NewMissingPluginIDError(path string) *errors.Error {
	return errors.New(ErrCodeMissingPluginID, "Missing plugin ID").
		WithUserMessage("The plugin descriptor does not declare a plugin ID").
		WithContext("descriptor_path", path).
		WithSeverity("error")
}

func NewMissingEntryFileError(pluginID, entryPath string) *errors.Error {
	return errors.New(ErrCodeMissingEntryFile, "Missing entry file").
		WithUserMessage("The plugin's declared entry file does not exist").
		WithContext("plugin_id", pluginID).
		WithContext("entry_path", entryPath).
		WithSeverity("error")
}

func NewInvalidVersionStringError(versionStr string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeInvalidVersionString, "Invalid version string").
		WithUserMessage("The plugin version is not a dot-separated numeric version").
		WithContext("version", versionStr).
		WithSeverity("error")
}

// Code loading error constructors

func NewEntryStartFailedError(entryPath string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeEntryStartFailed, "Entry executable start failed").
		WithUserMessage("The plugin's code unit could not be loaded").
		WithContext("entry_path", entryPath).
		WithSeverity("error")
}

func NewHandshakeFailedError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeHandshakeFailed, "Plugin handshake failed: "+message).
		WithUserMessage("The plugin did not complete its startup handshake").
		WithSeverity("error")
}

func NewUnitNameMissingError(entryPath string) *errors.Error {
	return errors.New(ErrCodeUnitNameMissing, "Unit name missing").
		WithUserMessage("The loaded code unit did not report a logical name").
		WithContext("entry_path", entryPath).
		WithSeverity("error")
}

func NewCapabilityNotFoundError(unitName, capability string) *errors.Error {
	return errors.New(ErrCodeCapabilityNotFound, "Capability not found").
		WithUserMessage("The plugin does not expose the required capability").
		WithContext("unit_name", unitName).
		WithContext("capability", capability).
		WithSeverity("error")
}

func NewEndpointUnhealthyError(address string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeEndpointUnhealthy, "Plugin endpoint unhealthy").
		WithUserMessage("The plugin's service endpoint did not pass its health check").
		WithContext("address", address).
		WithSeverity("error").
		AsRetryable()
}

func NewProtocolMismatchError(got, want uint) *errors.Error {
	return errors.New(ErrCodeProtocolMismatch, "Handshake protocol mismatch").
		WithUserMessage("The plugin speaks an incompatible handshake protocol version").
		WithContext("plugin_protocol", got).
		WithContext("host_protocol", want).
		WithSeverity("error")
}

func NewPluginNotRegisteredError(pluginID string) *errors.Error {
	return errors.New(ErrCodePluginNotRegistered, "Plugin not registered").
		WithUserMessage("No active plugin with this ID").
		WithContext("plugin_id", pluginID).
		WithSeverity("warning")
}

// Filesystem and install error constructors

func NewExtractFailedError(packagePath string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeExtractFailed, "Package extraction failed").
		WithUserMessage("The plugin package is corrupt or could not be extracted").
		WithContext("package_path", packagePath).
		WithSeverity("error")
}

func NewUnsafeZipEntryError(entryName string) *errors.Error {
	return errors.New(ErrCodeUnsafeZipEntry, "Unsafe archive entry").
		WithUserMessage("The plugin package contains an entry escaping the extraction root").
		WithContext("entry_name", entryName).
		WithSeverity("error")
}

func NewMoveFailedError(source, target string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeMoveFailed, "Directory move failed").
		WithUserMessage("The plugin directory could not be relocated").
		WithContext("source", source).
		WithContext("target", target).
		WithSeverity("error")
}

func NewDeleteFailedError(dir string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDeleteFailed, "Directory delete failed").
		WithUserMessage("The directory could not be removed; it will be retried later").
		WithContext("directory", dir).
		WithSeverity("warning").
		AsRetryable()
}

func NewRelocateCollisionError(target string) *errors.Error {
	return errors.New(ErrCodeRelocateCollide, "Relocation target already exists").
		WithUserMessage("A directory already occupies the plugin's install location").
		WithContext("target", target).
		WithSeverity("error")
}

// Configuration error constructors

func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The host configuration file could not be found").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParse, "Configuration parse error").
		WithUserMessage("Failed to parse the host configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string) *errors.Error {
	return errors.New(ErrCodeConfigValidation, "Configuration validation error: "+message).
		WithUserMessage("Host configuration validation failed").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigWatcher, "Configuration watcher error: "+message).
		WithUserMessage("Host configuration monitoring failed").
		WithSeverity("error")
}
