package server

import "testing"

func TestReplaceSagaTransitions(t *testing.T) {
	tests := []struct {
		name  string
		steps []sagaState
		ok    bool
	}{
		{name: "fresh commit", steps: []sagaState{sagaCommitted}, ok: true},
		{name: "fresh rollback", steps: []sagaState{sagaRolledBack}, ok: true},
		{name: "staged commit", steps: []sagaState{sagaStaged, sagaCommitted}, ok: true},
		{name: "staged rollback", steps: []sagaState{sagaStaged, sagaRolledBack}, ok: true},
		{name: "double stage", steps: []sagaState{sagaStaged, sagaStaged}, ok: false},
		{name: "commit is terminal", steps: []sagaState{sagaCommitted, sagaRolledBack}, ok: false},
		{name: "rollback is terminal", steps: []sagaState{sagaRolledBack, sagaCommitted}, ok: false},
		{name: "back to idle", steps: []sagaState{sagaStaged, sagaIdle}, ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			saga := newReplaceSaga()
			var err error
			for _, step := range tc.steps {
				if err = saga.advance(step); err != nil {
					break
				}
			}
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected invalid transition error")
			}
		})
	}
}

func TestReplaceSagaStageRecordsNames(t *testing.T) {
	saga := newReplaceSaga()
	if saga.staged() {
		t.Fatal("new saga should not be staged")
	}
	if err := saga.stage("7_old.png", "temp-0123456789abcdef-7_old.png"); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !saga.staged() || saga.oldFilename != "7_old.png" || saga.state != sagaStaged {
		t.Fatalf("unexpected saga: %+v", saga)
	}
}
