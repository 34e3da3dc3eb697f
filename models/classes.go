// Package models - Definitions for model output class sets.
package models

import "fmt"

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet is the ordered list of labels a model was trained on.
type OutputClassSet struct {
	// Classes that are supported and mappable.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// BrainTumorClasses are the labels of the brain-tumor MRI dataset the default
// model was trained on.
var BrainTumorClasses = []string{"negative", "positive"}

// NewClassSet builds a class set from label names in model output order.
//
// Arguments:
//   - names: The label names; index i is model class i.
//
// Returns:
//   - *OutputClassSet: The class set.
func NewClassSet(names []string) *OutputClassSet {
	set := &OutputClassSet{
		Classes:   make([]OutputClass, len(names)),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, name := range names {
		set.Classes[i] = OutputClass{Index: i, Name: name}
		set.nameToIdx[name] = i
	}
	return set
}

// Len returns the number of classes.
func (s *OutputClassSet) Len() int {
	return len(s.Classes)
}

// Name returns the label for idx. Indices outside the set are rendered as
// "class <idx>" rather than failing, so a model/label mismatch still produces
// readable output.
func (s *OutputClassSet) Name(idx int) string {
	if idx < 0 || idx >= len(s.Classes) {
		return fmt.Sprintf("class %d", idx)
	}
	return s.Classes[idx].Name
}

// Index returns the class index for a given name.
func (s *OutputClassSet) Index(name string) (int, error) {
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, fmt.Errorf("name %q not found in class set", name)
	}
	return idx, nil
}
