package source

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/llm-d/llm-d-group-allocator/api/v1alpha1"
)

// DecodeYAML reads a roster given either as a list of records or as a
// document with a "students" list. JSON input is accepted as well.
func DecodeYAML(r io.Reader) ([]v1alpha1.StudentRecord, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty roster file")
		}
		return nil, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}

	var records []v1alpha1.StudentRecord
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&records); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var wrapped struct {
			Students []v1alpha1.StudentRecord `yaml:"students"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, err
		}
		if wrapped.Students == nil {
			return nil, errors.New(`roster document has no "students" list`)
		}
		records = wrapped.Students
	default:
		return nil, fmt.Errorf("roster must be a list of students, got %s", kindName(root.Kind))
	}
	return records, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	default:
		return "an empty document"
	}
}
