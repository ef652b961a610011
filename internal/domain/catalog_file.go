package domain

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Plans map[string]string `yaml:"plans"`
}

// LoadPlanCatalog reads limit overrides from a YAML file of the form
//
//	plans:
//	  free: 25
//	  enterprise: unlimited
//
// Plans missing from the file keep their default limits.
func LoadPlanCatalog(path string) (PlanCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return ParsePlanCatalog(data)
}

// ParsePlanCatalog applies YAML overrides on top of the default catalog.
func ParsePlanCatalog(data []byte) (PlanCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}

	catalog := DefaultPlanCatalog()
	for name, raw := range f.Plans {
		plan, ok := ParsePlan(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			return nil, fmt.Errorf("parse plan catalog: unknown plan %q", name)
		}
		limit, err := ParseLimit(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse plan catalog: plan %s: %w", plan, err)
		}
		catalog[plan] = limit
	}
	return catalog, nil
}
