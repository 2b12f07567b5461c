package reconcile

import "testing"

func TestValidateTransition(t *testing.T) {
	legal := []struct{ from, to State }{
		{StateIdle, StateQuerying},
		{StateIdle, StateDone},
		{StateQuerying, StateWaiting},
		{StateQuerying, StateDone},
		{StateWaiting, StateQuerying},
		{StateWaiting, StateDone},
	}
	for _, tr := range legal {
		if err := ValidateTransition(tr.from, tr.to); err != nil {
			t.Errorf("%s -> %s should be legal: %v", tr.from, tr.to, err)
		}
	}

	illegal := []struct{ from, to State }{
		{StateDone, StateQuerying}, // DONE 是吸收态
		{StateDone, StateWaiting},
		{StateDone, StateIdle},
		{StateIdle, StateWaiting},    // 不允许跳过首查
		{StateWaiting, StateIdle},    // 不允许回退
		{StateQuerying, StateIdle},
	}
	for _, tr := range illegal {
		if err := ValidateTransition(tr.from, tr.to); err == nil {
			t.Errorf("%s -> %s should be rejected", tr.from, tr.to)
		}
	}

	// 幂等迁移允许
	if err := ValidateTransition(StateWaiting, StateWaiting); err != nil {
		t.Errorf("self transition should be legal: %v", err)
	}
}

func TestIsFinalState(t *testing.T) {
	if !IsFinalState(StateDone) {
		t.Error("DONE should be final")
	}
	for _, s := range []State{StateIdle, StateQuerying, StateWaiting} {
		if IsFinalState(s) {
			t.Errorf("%s should not be final", s)
		}
	}
}
