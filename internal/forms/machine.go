package forms

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrAlreadySubmitted indicates a transition was attempted after submission.
	ErrAlreadySubmitted = errors.New("forms: wizard already submitted")
	// ErrNotFinalStep indicates Submit was called before the last step.
	ErrNotFinalStep = errors.New("forms: submit is only allowed from the final step")
	// ErrFinalStep indicates Next was called on the last step.
	ErrFinalStep = errors.New("forms: already on the final step")
)

// Values is the flat field map a wizard collects.
type Values map[string]any

// String returns the trimmed textual form of a value.
func (v Values) String(name string) string {
	raw, ok := v[name]
	if !ok || raw == nil {
		return ""
	}
	switch typed := raw.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for key, value := range v {
		out[key] = value
	}
	return out
}

// Merge returns a copy of v overlaid with updates.
func (v Values) Merge(updates Values) Values {
	out := v.Clone()
	for key, value := range updates {
		out[key] = value
	}
	return out
}

// State is an immutable snapshot of a wizard.
type State struct {
	FormType    FormType `json:"form_type"`
	CurrentStep int      `json:"current_step"`
	Values      Values   `json:"form_data"`
	Submitted   bool     `json:"submitted"`
}

// Equal reports whether two snapshots carry the same step and values.
func (s State) Equal(other State) bool {
	if s.FormType != other.FormType || s.CurrentStep != other.CurrentStep || s.Submitted != other.Submitted {
		return false
	}
	if len(s.Values) != len(other.Values) {
		return false
	}
	for key, value := range s.Values {
		otherValue, ok := other.Values[key]
		if !ok || fmt.Sprint(value) != fmt.Sprint(otherValue) {
			return false
		}
	}
	return true
}

// Machine is the wizard state machine: states Step1..StepN and Submitted.
// Forward transitions are guarded by the current step's validation.
type Machine struct {
	definition Definition
	step       int
	submitted  bool
	values     Values
}

// NewMachine starts a wizard at step 1.
func NewMachine(formType FormType) (*Machine, error) {
	return Restore(State{FormType: formType, CurrentStep: 1})
}

// Restore resumes a wizard from a snapshot, clamping the step into range.
func Restore(state State) (*Machine, error) {
	definition, err := Lookup(state.FormType)
	if err != nil {
		return nil, err
	}
	step := state.CurrentStep
	if step < 1 {
		step = 1
	}
	if step > definition.StepCount() {
		step = definition.StepCount()
	}
	values := state.Values
	if values == nil {
		values = Values{}
	}
	return &Machine{
		definition: definition,
		step:       step,
		submitted:  state.Submitted,
		values:     values.Clone(),
	}, nil
}

func (m *Machine) Definition() Definition {
	return m.definition
}

func (m *Machine) Step() int {
	return m.step
}

func (m *Machine) Submitted() bool {
	return m.submitted
}

// Update merges field values without any transition.
func (m *Machine) Update(values Values) {
	m.values = m.values.Merge(values)
}

// Next validates the current step and advances.
func (m *Machine) Next(values Values) error {
	if m.submitted {
		return ErrAlreadySubmitted
	}
	m.Update(values)
	if m.step >= m.definition.StepCount() {
		return ErrFinalStep
	}
	if err := m.definition.ValidateStep(m.step, m.values); err != nil {
		return err
	}
	m.step++
	return nil
}

// Previous steps back without validation; step 1 is a fixed point.
func (m *Machine) Previous() error {
	if m.submitted {
		return ErrAlreadySubmitted
	}
	if m.step > 1 {
		m.step--
	}
	return nil
}

// Submit re-runs every step rule from the final step and moves to Submitted.
func (m *Machine) Submit(values Values) error {
	if m.submitted {
		return ErrAlreadySubmitted
	}
	m.Update(values)
	if m.step != m.definition.StepCount() {
		return ErrNotFinalStep
	}
	if err := m.definition.ValidateAll(m.values); err != nil {
		return err
	}
	m.submitted = true
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	return State{
		FormType:    m.definition.Type,
		CurrentStep: m.step,
		Values:      m.values.Clone(),
		Submitted:   m.submitted,
	}
}
