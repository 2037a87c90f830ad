package extract

import (
	"errors"
	"fmt"
)

// StepKind is the kind of markup event a pattern step expects.
type StepKind int

const (
	Open StepKind = iota
	Close
	Capture
)

func (k StepKind) String() string {
	switch k {
	case Open:
		return "open"
	case Close:
		return "close"
	case Capture:
		return "capture"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is one entry of the transition table.
type Step struct {
	Kind StepKind
	Tag  string
}

// Pattern is the ordered list of events that make up one table row.
// RowTag and CellTag are the structural tags: an unexpected close of either
// resynchronises the automaton.
type Pattern struct {
	RowTag  string
	CellTag string
	Steps   []Step
}

// Captures returns the number of capture steps.
func (p Pattern) Captures() int {
	n := 0
	for _, s := range p.Steps {
		if s.Kind == Capture {
			n++
		}
	}
	return n
}

// Validate checks that the pattern opens and closes a row and closes it only once.
func (p Pattern) Validate() error {
	if p.RowTag == "" || p.CellTag == "" {
		return errors.New("pattern: row and cell tags are required")
	}
	if len(p.Steps) < 2 {
		return errors.New("pattern: too few steps")
	}
	if first := p.Steps[0]; first.Kind != Open || first.Tag != p.RowTag {
		return fmt.Errorf("pattern: must start with open %q", p.RowTag)
	}
	last := len(p.Steps) - 1
	if s := p.Steps[last]; s.Kind != Close || s.Tag != p.RowTag {
		return fmt.Errorf("pattern: must end with close %q", p.RowTag)
	}
	for i, s := range p.Steps[:last] {
		if s.Kind == Close && s.Tag == p.RowTag {
			return fmt.Errorf("pattern: step %d closes the row early", i)
		}
	}
	if p.Captures() == 0 {
		return errors.New("pattern: no capture step")
	}
	return nil
}

func cell(capture bool) []Step {
	if capture {
		return []Step{{Open, "td"}, {Kind: Capture}, {Close, "td"}}
	}
	return []Step{{Open, "td"}, {Close, "td"}}
}

func row(cells ...[]Step) []Step {
	steps := []Step{{Open, "tr"}}
	for _, c := range cells {
		steps = append(steps, c...)
	}
	return append(steps, Step{Close, "tr"})
}

// TeleTrader matches the closing price tables of TeleTrader exchange pages:
// name, close, trend, diff, diff%, date/time, volume, previous close.
var TeleTrader = Pattern{
	RowTag:  "tr",
	CellTag: "td",
	Steps: row(
		cell(true),  // name
		cell(true),  // closing price
		cell(false), // trend
		cell(false), // diff
		cell(false), // diff%
		cell(true),  // date/time, e.g. 07.14./17:35
		cell(true),  // volume
		cell(false), // previous close
	),
}
