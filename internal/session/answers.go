package session

import (
	"encoding/json"
	"fmt"
)

// Answers maps a question index to the chosen option. Iteration follows the
// order in which indices were first answered; re-answering an index replaces
// its value in place.
type Answers struct {
	order []int
	vals  map[int]string
}

func NewAnswers() *Answers { return &Answers{vals: map[int]string{}} }

func (a *Answers) Set(index int, value string) {
	if a.vals == nil {
		a.vals = map[int]string{}
	}
	if _, ok := a.vals[index]; !ok {
		a.order = append(a.order, index)
	}
	a.vals[index] = value
}

func (a *Answers) Get(index int) (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a.vals[index]
	return v, ok
}

func (a *Answers) Has(index int) bool {
	_, ok := a.Get(index)
	return ok
}

func (a *Answers) Len() int {
	if a == nil {
		return 0
	}
	return len(a.order)
}

// Indices returns answered indices in insertion order.
func (a *Answers) Indices() []int {
	if a == nil {
		return nil
	}
	return append([]int(nil), a.order...)
}

func (a *Answers) Clone() *Answers {
	out := NewAnswers()
	for _, i := range a.Indices() {
		out.Set(i, a.vals[i])
	}
	return out
}

// MarshalJSON encodes entries as [[index, value], ...].
func (a *Answers) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, 0, a.Len())
	for _, i := range a.Indices() {
		pairs = append(pairs, [2]any{i, a.vals[i]})
	}
	return json.Marshal(pairs)
}

func (a *Answers) UnmarshalJSON(b []byte) error {
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(b, &pairs); err != nil {
		return err
	}
	*a = Answers{vals: map[int]string{}}
	for n, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("answers[%d]: want [index, value]", n)
		}
		var idx int
		if err := json.Unmarshal(p[0], &idx); err != nil {
			return fmt.Errorf("answers[%d] index: %w", n, err)
		}
		var val string
		if err := json.Unmarshal(p[1], &val); err != nil {
			return fmt.Errorf("answers[%d] value: %w", n, err)
		}
		if idx < 0 {
			return fmt.Errorf("answers[%d]: negative index", n)
		}
		a.Set(idx, val)
	}
	return nil
}
