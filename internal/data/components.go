package data

import (
	"fmt"
	"os"
	"strings"

	"github.com/l1jgo/archestore/internal/core/ecs"
	"gopkg.in/yaml.v3"
)

// ComponentDef is one tag kind declared in the components file.
type ComponentDef struct {
	Name         string `yaml:"name"`
	Serializable *bool  `yaml:"serializable"` // default true
	Note         string `yaml:"note"`
}

type componentFile struct {
	Components []ComponentDef `yaml:"components"`
}

// LoadComponentDefs parses components.yaml.
func LoadComponentDefs(path string) ([]ComponentDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read component list: %w", err)
	}
	return ParseComponentDefs(raw)
}

func ParseComponentDefs(raw []byte) ([]ComponentDef, error) {
	var f componentFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse component list: %w", err)
	}
	for i, d := range f.Components {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("component %d: empty name", i)
		}
	}
	return f.Components, nil
}

// RegisterComponents registers every definition as a tag kind. Names the
// registry already knows, such as kinds registered in code, are skipped.
// It returns how many kinds were added.
func RegisterComponents(reg *ecs.Registry, defs []ComponentDef) int {
	added := 0
	for _, d := range defs {
		if _, ok := reg.Lookup(d.Name); ok {
			continue
		}
		var opts []ecs.KindOption
		if d.Serializable != nil {
			opts = append(opts, ecs.Serializable(*d.Serializable))
		}
		reg.RegisterTag(d.Name, opts...)
		added++
	}
	return added
}
