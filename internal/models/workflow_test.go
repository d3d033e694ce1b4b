package models

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTaskStatus(t *testing.T) {
	got, err := ParseTaskStatus(" IN-PROGRESS ")
	if err != nil {
		t.Fatalf("parse status: %v", err)
	}
	if got != StatusInProgress {
		t.Fatalf("expected %q, got %q", StatusInProgress, got)
	}

	if _, err := ParseTaskStatus("in_progress"); err == nil {
		t.Fatal("expected invalid status error")
	}
	if _, err := ParseTaskStatus(" "); err == nil {
		t.Fatal("expected required status error")
	}
}

func TestWorkflowTable(t *testing.T) {
	tests := []struct {
		transition TaskTransition
		from       TaskStatus
		to         TaskStatus
	}{
		{TransitionStart, StatusNew, StatusInProgress},
		{TransitionComplete, StatusInProgress, StatusCompleted},
		{TransitionHold, StatusInProgress, StatusOnHold},
		{TransitionResume, StatusOnHold, StatusInProgress},
		{TransitionCancel, StatusNew, StatusCanceled},
		{TransitionCancel, StatusInProgress, StatusCanceled},
		{TransitionCancel, StatusOnHold, StatusCanceled},
		{TransitionArchive, StatusCompleted, StatusArchived},
	}

	for _, tt := range tests {
		t.Run(string(tt.transition)+"/"+string(tt.from), func(t *testing.T) {
			if !CanApply(tt.transition, tt.from) {
				t.Fatalf("expected %s to apply to %s", tt.transition, tt.from)
			}
			got, err := Apply(tt.transition, tt.from)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got != tt.to {
				t.Fatalf("expected %s, got %s", tt.to, got)
			}
		})
	}
}

func TestWorkflowRejectsInapplicableTransitions(t *testing.T) {
	rejected := []struct {
		transition TaskTransition
		from       TaskStatus
	}{
		{TransitionStart, StatusInProgress},
		{TransitionComplete, StatusNew},
		{TransitionResume, StatusInProgress},
		{TransitionCancel, StatusCompleted},
		{TransitionCancel, StatusArchived},
		{TransitionArchive, StatusCanceled},
		{TaskTransition("reopen"), StatusCompleted},
	}
	for _, tt := range rejected {
		if CanApply(tt.transition, tt.from) {
			t.Fatalf("expected %s to be rejected for %s", tt.transition, tt.from)
		}
		if _, err := Apply(tt.transition, tt.from); !errors.Is(err, ErrTransitionNotApplicable) {
			t.Fatalf("expected ErrTransitionNotApplicable for %s/%s, got %v", tt.transition, tt.from, err)
		}
	}
}

func TestAvailableTransitions(t *testing.T) {
	got := AvailableTransitions(StatusInProgress)
	want := []TaskTransition{TransitionCancel, TransitionComplete, TransitionHold}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := AvailableTransitions(StatusArchived); len(got) != 0 {
		t.Fatalf("expected no transitions from archived, got %v", got)
	}
}

func TestParseTaskTransition(t *testing.T) {
	got, err := ParseTaskTransition(" Start ")
	if err != nil || got != TransitionStart {
		t.Fatalf("expected start, got %q (%v)", got, err)
	}
	if _, err := ParseTaskTransition("jump"); err == nil {
		t.Fatal("expected invalid transition error")
	}
}
