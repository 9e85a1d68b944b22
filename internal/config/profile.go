package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultProfileDir is the directory under the user's home for fvctl state.
const DefaultProfileDir = ".framevist"

// DefaultProfileFile is the profile file name within the profile directory.
const DefaultProfileFile = "config.yaml"

// DefaultServerURL is the admin API fvctl talks to when no profile is set.
const DefaultServerURL = "http://localhost:8080"

// Target is one admin API endpoint and its bearer token.
type Target struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token,omitempty"`
}

// Profile represents the contents of ~/.framevist/config.yaml.
type Profile struct {
	Current string            `yaml:"current"`
	Targets map[string]Target `yaml:"targets"`
}

// ProfilePath returns the full path to the profile file.
func ProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultProfileDir, DefaultProfileFile), nil
}

// LoadProfile reads the profile at path. A missing file yields the default
// profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultProfile(), nil
		}
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if p.Targets == nil {
		p.Targets = make(map[string]Target)
	}
	if _, ok := p.Targets["local"]; !ok {
		p.Targets["local"] = Target{URL: DefaultServerURL}
	}
	if p.Current == "" {
		p.Current = "local"
	}
	return &p, nil
}

// SaveProfile writes the profile to path.
func SaveProfile(path string, p *Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating profile dir: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Active returns the current target.
func (p *Profile) Active() (Target, error) {
	t, ok := p.Targets[p.Current]
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q", p.Current)
	}
	return t, nil
}

func defaultProfile() *Profile {
	return &Profile{
		Current: "local",
		Targets: map[string]Target{"local": {URL: DefaultServerURL}},
	}
}
