package features

import (
	"encoding/json"
	"fmt"
	"sort"
)

// LabelIndex is a bijection between disease labels and class indices.
// Classes are sorted, so fitting the same label set always yields the same
// indices.
type LabelIndex struct {
	classes []string
	index   map[string]int
}

// FitLabels builds the index from every label seen in training.
func FitLabels(labels []string) *LabelIndex {
	uniq := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		uniq[l] = struct{}{}
	}
	classes := make([]string, 0, len(uniq))
	for l := range uniq {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	li, _ := NewLabelIndex(classes)
	return li
}

// NewLabelIndex restores an index from its class list.
func NewLabelIndex(classes []string) (*LabelIndex, error) {
	li := &LabelIndex{classes: make([]string, len(classes)), index: make(map[string]int, len(classes))}
	for i, c := range classes {
		if _, dup := li.index[c]; dup {
			return nil, fmt.Errorf("label %q appears twice", c)
		}
		li.classes[i] = c
		li.index[c] = i
	}
	return li, nil
}

// Len is the number of classes.
func (li *LabelIndex) Len() int {
	return len(li.classes)
}

// Classes returns a copy of the labels in class order.
func (li *LabelIndex) Classes() []string {
	out := make([]string, len(li.classes))
	copy(out, li.classes)
	return out
}

// Encode returns the class index of label.
func (li *LabelIndex) Encode(label string) (int, error) {
	i, ok := li.index[label]
	if !ok {
		return -1, fmt.Errorf("label %q was not seen when the index was fitted", label)
	}
	return i, nil
}

// EncodeAll encodes a batch of labels.
func (li *LabelIndex) EncodeAll(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		c, err := li.Encode(l)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Decode returns the label of class i.
func (li *LabelIndex) Decode(i int) (string, error) {
	if i < 0 || i >= len(li.classes) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", i, len(li.classes))
	}
	return li.classes[i], nil
}

func (li *LabelIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(li.classes)
}

func (li *LabelIndex) UnmarshalJSON(data []byte) error {
	var classes []string
	if err := json.Unmarshal(data, &classes); err != nil {
		return err
	}
	parsed, err := NewLabelIndex(classes)
	if err != nil {
		return err
	}
	*li = *parsed
	return nil
}
