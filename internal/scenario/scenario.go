// Package scenario loads YAML smoke scenarios and runs them against a live
// Frame Vist storefront.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a named sequence of requests with assertions.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Setup       Setup  `yaml:"setup"`
	Steps       []Step `yaml:"steps"`
}

// Setup runs before the first step.
type Setup struct {
	// Reset calls POST /admin/reset.
	Reset bool `yaml:"reset"`
	// State is a JSON snapshot file posted to /admin/state, relative to the
	// scenario file.
	State string `yaml:"state"`
}

// Step is a single request/assert pair. Capture stores JSON values from the
// response under a variable name for later steps.
type Step struct {
	Name    string            `yaml:"name"`
	Request Request           `yaml:"request"`
	Assert  Assert            `yaml:"assert"`
	Capture map[string]string `yaml:"capture"`
}

// Request is resolved against the runner's base URL. Admin requests carry
// the runner's bearer token.
type Request struct {
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	Admin   bool              `yaml:"admin"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
}

// Assert lists the expectations for a response. JSON maps a path such as
// $.summary.total to its expected string form.
type Assert struct {
	Status       int               `yaml:"status"`
	BodyContains string            `yaml:"body_contains"`
	JSON         map[string]string `yaml:"json"`
}

// LoadScenario parses a single YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported scenario format %q (expected .yaml or .yml)", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	if s.Setup.State != "" && !filepath.IsAbs(s.Setup.State) {
		s.Setup.State = filepath.Join(filepath.Dir(path), s.Setup.State)
	}
	return &s, nil
}

// LoadDir loads every YAML scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
