package workload

import (
	"fmt"
	"os"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML workload file and returns a validated Workload.
func LoadFromFile(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload file: %w", err)
	}

	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing workload YAML: %w", err)
	}

	if err := validate(&w); err != nil {
		return nil, fmt.Errorf("validating workload: %w", err)
	}

	return &w, nil
}

// validate assigns ids to bare queries, then checks ids are unique, every
// query compiles and the overrides yield a usable model.
func validate(w *Workload) error {
	seen := make(map[string]bool)
	if !w.ReplaceDemoQueries {
		for _, q := range domain.DemoQueries() {
			seen[q.ID] = true
		}
	}
	for i := range w.Queries {
		q := &w.Queries[i]
		if q.ID == "" {
			q.ID = fmt.Sprintf("W%d", i+1)
		}
		if seen[q.ID] {
			return fmt.Errorf("queries[%d]: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = true
		if _, err := q.Compile(); err != nil {
			return fmt.Errorf("queries[%d]: %w", i, err)
		}
	}
	if w.ReplaceDemoQueries && len(w.Queries) == 0 {
		return fmt.Errorf("replace_demo_queries requires at least one query")
	}
	if err := w.Apply(domain.DefaultModel()).Validate(); err != nil {
		return err
	}
	return nil
}
