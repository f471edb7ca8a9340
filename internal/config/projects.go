package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"avito-assist/internal/core/domain"
)

// projectsFile is the YAML seed layout:
//
//	projects:
//	  - id: default
//	    business_type: goods
//	    ...
type projectsFile struct {
	Projects []yaml.Node `yaml:"projects"`
}

// LoadProjects reads and validates a YAML project seed. Absent fields take
// the project defaults. Any invalid project fails the whole file.
func LoadProjects(path string) ([]*domain.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read projects file: %w", err)
	}
	return ParseProjects(data)
}

// ParseProjects decodes and validates a YAML project seed
func ParseProjects(data []byte) ([]*domain.Project, error) {
	var file projectsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse projects file: %w", err)
	}

	seen := make(map[string]bool, len(file.Projects))
	projects := make([]*domain.Project, 0, len(file.Projects))

	for i := range file.Projects {
		project := domain.NewProject()
		if err := file.Projects[i].Decode(project); err != nil {
			return nil, fmt.Errorf("projects[%d]: %w", i, err)
		}
		if err := project.Validate(); err != nil {
			return nil, fmt.Errorf("projects[%d]: %w", i, err)
		}
		if seen[project.ID] {
			return nil, fmt.Errorf("projects[%d]: duplicate id %q", i, project.ID)
		}
		seen[project.ID] = true
		projects = append(projects, project)
	}

	return projects, nil
}
