package review

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed rubric.yaml
var defaultRubricYAML []byte

// Criterion is one rubric entry.
type Criterion struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Critical    bool   `yaml:"critical"`
	Description string `yaml:"description"`
}

// Rubric is the ordered list of criteria a verdict is checked against.
type Rubric struct {
	Criteria []Criterion `yaml:"criteria"`

	index map[string]int
}

// LoadRubric decodes and validates a rubric document.
func LoadRubric(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode rubric: %w", err)
	}
	if len(r.Criteria) == 0 {
		return nil, fmt.Errorf("rubric has no criteria")
	}

	r.index = make(map[string]int, len(r.Criteria))
	for i, c := range r.Criteria {
		if c.Key == "" {
			return nil, fmt.Errorf("rubric criterion %d has no key", i)
		}
		if _, dup := r.index[c.Key]; dup {
			return nil, fmt.Errorf("rubric criterion %q is defined twice", c.Key)
		}
		r.index[c.Key] = i
	}
	return &r, nil
}

// DefaultRubric returns the embedded component authoring rubric.
func DefaultRubric() *Rubric {
	r, err := LoadRubric(defaultRubricYAML)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the criterion for key.
func (r *Rubric) Lookup(key string) (Criterion, bool) {
	i, ok := r.index[key]
	if !ok {
		return Criterion{}, false
	}
	return r.Criteria[i], true
}

// Position returns the rubric order of key, or -1.
func (r *Rubric) Position(key string) int {
	if i, ok := r.index[key]; ok {
		return i
	}
	return -1
}

// CriticalKeys returns the keys of all critical criteria in rubric order.
func (r *Rubric) CriticalKeys() []string {
	var keys []string
	for _, c := range r.Criteria {
		if c.Critical {
			keys = append(keys, c.Key)
		}
	}
	return keys
}
