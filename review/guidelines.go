/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package review

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RepoConfigFile is the per-repository configuration file name.
const RepoConfigFile = ".mr-pilot.yaml"

// RepoConfig is per-repository review configuration, committed alongside
// the code it governs.
type RepoConfig struct {
	// Guidelines are appended to the review prompt.
	Guidelines []string `yaml:"guidelines"`
	// MaxFindings overrides the engine default when positive.
	MaxFindings int `yaml:"maxFindings"`
}

// LoadRepoConfig reads a repo config file. A missing file is not an error;
// it returns the zero config.
func LoadRepoConfig(path string) (RepoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RepoConfig{}, nil
		}
		return RepoConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg RepoConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RepoConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
