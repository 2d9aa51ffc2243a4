// localization.go: Localization collaborator hook
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

// LocalizationNotifier is the host collaborator that ingests language
// resources bundled with a plugin. The manager notifies it right after a
// plugin is installed and registered, so the plugin's translations become
// available without a host restart. The manager never inspects the resources
// itself.
type LocalizationNotifier interface {
	// LoadLanguageResources loads any language resources found under dir.
	LoadLanguageResources(dir string) error
}

// noopLocalization is used when the host wires no localization collaborator.
type noopLocalization struct{}

func (noopLocalization) LoadLanguageResources(dir string) error { return nil }
