// config.go: Host configuration file loading
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// LoadManagerConfig reads a manager configuration from a JSON or YAML file.
//
// The format is detected from the file extension. The returned configuration
// is validated and defaulted the same way NewManager validates a
// programmatically built one, so a loaded config is ready to hand to
// NewManager directly. Collaborator fields (logger, loader, localization)
// are code-level concerns and are never populated from a file.
func LoadManagerConfig(path string) (ManagerConfig, error) {
	var config ManagerConfig

	data, err := os.ReadFile(path) // #nosec G304 - the host chooses its own config path
	if err != nil {
		if os.IsNotExist(err) {
			return config, NewConfigNotFoundError(path)
		}
		return config, NewConfigParseError(path, err)
	}

	switch format := argus.DetectFormat(path); format {
	case argus.FormatJSON:
		err = json.Unmarshal(data, &config)
	case argus.FormatYAML:
		err = yaml.Unmarshal(data, &config)
	default:
		return config, NewConfigParseError(path,
			NewConfigValidationError(fmt.Sprintf("unsupported config format: %s", format)))
	}
	if err != nil {
		return config, NewConfigParseError(path, err)
	}

	if err := validateManagerConfig(&config); err != nil {
		return config, err
	}

	return config, nil
}
