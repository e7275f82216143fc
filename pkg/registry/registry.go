// Package registry reads agent descriptors from a project-local
// directory, validates them against a required-field schema, and
// exposes valid and invalid agents alike — invalid descriptors are
// never silently skipped.
package registry

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Tier is an agent's preferred model tier.
type Tier string

const (
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

// descriptor is the raw shape of an agent.yml file.
type descriptor struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Capabilities   []string `yaml:"capabilities"`
	PreferredTier  string   `yaml:"preferredTier"`
}

// Agent is the parsed, validated view of one agent.yml. Invalid
// descriptors are still returned, with Valid=false and Errors
// populated, rather than omitted.
type Agent struct {
	ID            string
	Name          string
	Description   string
	Capabilities  []string
	PreferredTier Tier
	Valid         bool
	Errors        []string
	Path          string
}

var validTiers = map[string]Tier{
	"small":  TierSmall,
	"medium": TierMedium,
	"large":  TierLarge,
}

// Load reads every <dir>/<agentId>/agent.yml descriptor under root
// and returns one Agent per sub-directory found, in directory-name
// order.
func Load(root string) ([]Agent, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var agents []Agent
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name(), "agent.yml")
		agents = append(agents, loadOne(e.Name(), path))
	}
	return agents, nil
}

func loadOne(dirID, path string) Agent {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Agent{ID: dirID, Valid: false, Errors: []string{"cannot read descriptor: " + err.Error()}, Path: path}
	}

	var d descriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Agent{ID: dirID, Valid: false, Errors: []string{"cannot parse descriptor: " + err.Error()}, Path: path}
	}

	a := Agent{
		ID:           firstNonEmpty(d.ID, dirID),
		Name:         d.Name,
		Description:  d.Description,
		Capabilities: d.Capabilities,
		Path:         path,
	}

	errs := validate(d)
	if tier, ok := validTiers[d.PreferredTier]; ok {
		a.PreferredTier = tier
	} else if d.PreferredTier != "" {
		errs = append(errs, "preferredTier must be one of small, medium, large, got "+d.PreferredTier)
	} else {
		a.PreferredTier = TierMedium
	}

	a.Valid = len(errs) == 0
	a.Errors = errs
	return a
}

func validate(d descriptor) []string {
	var errs []string
	if d.ID == "" {
		errs = append(errs, "id is required")
	}
	if d.Name == "" {
		errs = append(errs, "name is required")
	}
	if d.Description == "" {
		errs = append(errs, "description is required")
	}
	if len(d.Capabilities) == 0 {
		errs = append(errs, "capabilities must list at least one capability")
	}
	return errs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
