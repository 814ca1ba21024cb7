package importer

import "testing"

func TestWizardHappyPath(t *testing.T) {
	w := NewWizard()
	steps := []State{StatePreviewed, StateConfigured, StateImporting, StateCompleted}
	for _, s := range steps {
		if err := w.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if !w.Terminal() {
		t.Error("completed wizard should be terminal")
	}
}

func TestWizardFailurePath(t *testing.T) {
	w := NewWizard()
	for _, s := range []State{StatePreviewed, StateConfigured, StateImporting, StateFailed} {
		if err := w.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if !w.Terminal() {
		t.Error("failed wizard should be terminal")
	}
}

func TestWizardNoSkippingAhead(t *testing.T) {
	w := NewWizard()
	if err := w.Transition(StateImporting); err == nil {
		t.Error("source_selected -> importing should be rejected")
	}
	if w.State() != StateSourceSelected {
		t.Errorf("failed transition moved state to %s", w.State())
	}
}

func TestWizardImportingNotReenterable(t *testing.T) {
	w := NewWizard()
	for _, s := range []State{StatePreviewed, StateConfigured, StateImporting, StateCompleted} {
		if err := w.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Transition(StateImporting); err == nil {
		t.Error("completed batch must not re-enter importing")
	}
}

func TestWizardBackToPreview(t *testing.T) {
	w := NewWizard()
	if err := w.Transition(StatePreviewed); err != nil {
		t.Fatal(err)
	}
	if err := w.Transition(StateConfigured); err != nil {
		t.Fatal(err)
	}
	if err := w.Transition(StatePreviewed); err != nil {
		t.Errorf("configured -> previewed should be allowed: %v", err)
	}
}
