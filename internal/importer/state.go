package importer

import "fmt"

// State is one step of the import wizard.
type State string

const (
	StateSourceSelected State = "source_selected"
	StatePreviewed      State = "previewed"
	StateConfigured     State = "configured"
	StateImporting      State = "importing"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// wizardTransitions enumerates every legal step. Moving backwards to re-pick
// a source or re-preview is allowed up until the import begins; once a batch
// enters importing it runs to completion and the wizard can only terminate.
var wizardTransitions = map[State][]State{
	StateSourceSelected: {StatePreviewed},
	StatePreviewed:      {StateConfigured, StateSourceSelected},
	StateConfigured:     {StateImporting, StatePreviewed, StateSourceSelected},
	StateImporting:      {StateCompleted, StateFailed},
	StateCompleted:      {},
	StateFailed:         {},
}

// Wizard tracks the import flow's state. Each transition is an explicit
// operator action; there is no auto-advance.
type Wizard struct {
	state State
}

// NewWizard starts at source_selected: a source is always chosen before the
// wizard exists.
func NewWizard() *Wizard {
	return &Wizard{state: StateSourceSelected}
}

// State returns the current step.
func (w *Wizard) State() State {
	return w.state
}

// Transition moves the wizard to the given state or reports why it cannot.
func (w *Wizard) Transition(to State) error {
	for _, allowed := range wizardTransitions[w.state] {
		if allowed == to {
			w.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid wizard transition %s -> %s", w.state, to)
}

// Terminal reports whether the wizard has finished, successfully or not.
func (w *Wizard) Terminal() bool {
	return w.state == StateCompleted || w.state == StateFailed
}
