// Package counter is the counter application: a model holding one integer,
// Increment and Decrement messages, and several ways of rendering it.
package counter

import (
	_ "embed"
	"fmt"

	"github.com/ryanhamamura/tally/vdom"
)

//go:embed counter.html
var templateHTML string

// LoadTemplate parses the embedded counter template.
func LoadTemplate() (*vdom.Template, error) {
	t, err := vdom.NewTemplate(templateHTML)
	if err != nil {
		return nil, fmt.Errorf("counter: load template: %w", err)
	}
	return t, nil
}

// Model is the counter state. Val is unbounded.
type Model struct {
	Val      int
	Template *vdom.Template
}

// Msg is a requested change to the counter.
type Msg int

const (
	Increment Msg = iota
	Decrement
)

func (m Msg) String() string {
	switch m {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	}
	return fmt.Sprintf("Msg(%d)", int(m))
}

// Update returns the model after msg. Unknown messages change nothing.
func Update(m Model, msg Msg) Model {
	switch msg {
	case Increment:
		m.Val++
	case Decrement:
		m.Val--
	}
	return m
}
