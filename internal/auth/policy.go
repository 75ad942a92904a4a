package auth

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resources and actions referenced by route guards.
const (
	ResourceJobCard        = "JOB_CARD"
	ResourceJobTemplate    = "JOB_TEMPLATE"
	ResourceUserManagement = "USER_MANAGEMENT"
	ResourceUserProfile    = "USER_PROFILE"
	ResourceEquipment      = "EQUIPMENT"

	ActionRead   = "READ"
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Resources and Actions enumerate every guarded permission.
var (
	Resources = []string{ResourceJobCard, ResourceJobTemplate, ResourceUserManagement, ResourceUserProfile, ResourceEquipment}
	Actions   = []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}
)

const wildcard = "*"

//go:embed policy.yaml
var defaultPolicy []byte

// Rule grants actions on a resource.
type Rule struct {
	Resource string   `yaml:"resource"`
	Actions  []string `yaml:"actions"`
	Except   []string `yaml:"except"`
}

func (r Rule) allows(resource, action string) bool {
	if r.Resource != wildcard && !strings.EqualFold(r.Resource, resource) {
		return false
	}
	for _, denied := range r.Except {
		if strings.EqualFold(denied, action) {
			return false
		}
	}
	for _, granted := range r.Actions {
		if granted == wildcard || strings.EqualFold(granted, action) {
			return true
		}
	}
	return false
}

// Policy maps role names to permission rules.
type Policy struct {
	Roles map[string][]Rule `yaml:"roles"`
}

// LoadPolicy reads the policy at path, or the embedded default when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	data := defaultPolicy
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy %s: %w", path, err)
		}
		data = raw
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	if len(p.Roles) == 0 {
		return nil, fmt.Errorf("decode policy: no roles defined")
	}
	return &p, nil
}

// Allows reports whether any of roles grants action on resource.
func (p *Policy) Allows(roles []string, resource, action string) bool {
	if p == nil {
		return false
	}
	for _, role := range roles {
		for _, rule := range p.Roles[strings.ToUpper(role)] {
			if rule.allows(resource, action) {
				return true
			}
		}
	}
	return false
}
