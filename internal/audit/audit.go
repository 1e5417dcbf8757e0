// Package audit records the ordered calculation steps behind every number a quote exposes.
package audit

// Step categories used across the engine.
const (
	CategoryDemand    = "demand"
	CategoryModifier  = "modifier"
	CategoryBattery   = "battery"
	CategoryGenerator = "generator"
	CategorySolar     = "solar"
	CategoryEV        = "ev_charging"
	CategoryGrid      = "grid"
	CategoryCost      = "cost"
	CategoryPricing   = "pricing"
	CategoryFinance   = "finance"
	CategoryEmissions = "emissions"
)

// Input is a literal value consulted by a step, with where it came from.
type Input struct {
	Name   string `json:"name"`
	Value  any    `json:"value"`
	Source string `json:"source"`
}

// Step is a single entry of the calculation log.
type Step struct {
	Number   int     `json:"number"`
	Category string  `json:"category"`
	Label    string  `json:"label"`
	Formula  string  `json:"formula"`
	Inputs   []Input `json:"inputs"`
	Output   float64 `json:"output"`
	Unit     string  `json:"unit"`
}

// Log is an append-only sequence of steps. The zero value is an empty log.
//
// Append never mutates the receiver's visible steps, so a Log can be threaded
// through a computation as a plain value.
type Log struct {
	steps []Step
}

// Append returns a new log with s added and numbered after the last step.
func (l Log) Append(s Step) Log {
	s.Number = len(l.steps) + 1
	if s.Inputs == nil {
		s.Inputs = []Input{}
	}
	// Full slice expression forces a copy when capacity is shared.
	return Log{steps: append(l.steps[:len(l.steps):len(l.steps)], s)}
}

// Concat appends every step of other, renumbering them after l.
func (l Log) Concat(other Log) Log {
	out := l
	for _, s := range other.steps {
		out = out.Append(s)
	}
	return out
}

// Len returns the number of steps.
func (l Log) Len() int {
	return len(l.steps)
}

// Last returns the most recent step, if any.
func (l Log) Last() (Step, bool) {
	if len(l.steps) == 0 {
		return Step{}, false
	}
	return l.steps[len(l.steps)-1], true
}

// Steps returns a copy of the recorded steps.
func (l Log) Steps() []Step {
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

// Find returns the first step with the given label.
func (l Log) Find(label string) (Step, bool) {
	for _, s := range l.steps {
		if s.Label == label {
			return s, true
		}
	}
	return Step{}, false
}

// In is shorthand for building an Input.
func In(name string, value any, source string) Input {
	return Input{Name: name, Value: value, Source: source}
}
