package models

import (
	"errors"
	"fmt"
	"strings"
)

// TaskTransition names a workflow step that moves a task between statuses.
type TaskTransition string

const (
	TransitionStart    TaskTransition = "start"
	TransitionComplete TaskTransition = "complete"
	TransitionHold     TaskTransition = "hold"
	TransitionResume   TaskTransition = "resume"
	TransitionCancel   TaskTransition = "cancel"
	TransitionArchive  TaskTransition = "archive"
)

// ErrTransitionNotApplicable is returned when a transition does not accept
// the task's current status.
var ErrTransitionNotApplicable = errors.New("transition not applicable")

type transitionRule struct {
	from []TaskStatus
	to   TaskStatus
}

var workflow = map[TaskTransition]transitionRule{
	TransitionStart:    {from: []TaskStatus{StatusNew}, to: StatusInProgress},
	TransitionComplete: {from: []TaskStatus{StatusInProgress}, to: StatusCompleted},
	TransitionHold:     {from: []TaskStatus{StatusInProgress}, to: StatusOnHold},
	TransitionResume:   {from: []TaskStatus{StatusOnHold}, to: StatusInProgress},
	TransitionCancel:   {from: []TaskStatus{StatusNew, StatusInProgress, StatusOnHold}, to: StatusCanceled},
	TransitionArchive:  {from: []TaskStatus{StatusCompleted}, to: StatusArchived},
}

func ParseTaskTransition(raw string) (TaskTransition, error) {
	value := TaskTransition(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("transition is required")
	}
	if _, ok := workflow[value]; !ok {
		return "", fmt.Errorf("invalid transition: %s", value)
	}
	return value, nil
}

// CanApply reports whether transition accepts a task in status.
func CanApply(transition TaskTransition, status TaskStatus) bool {
	rule, ok := workflow[transition]
	if !ok {
		return false
	}
	for _, from := range rule.from {
		if from == status {
			return true
		}
	}
	return false
}

// Apply returns the status reached by applying transition to status.
func Apply(transition TaskTransition, status TaskStatus) (TaskStatus, error) {
	if !CanApply(transition, status) {
		return "", fmt.Errorf("%w: %q can not be applied to task with status %q", ErrTransitionNotApplicable, transition, status)
	}
	return workflow[transition].to, nil
}

// AvailableTransitions lists the transitions accepted by status, sorted by name.
func AvailableTransitions(status TaskStatus) []TaskTransition {
	out := []TaskTransition{}
	for _, name := range []TaskTransition{
		TransitionArchive,
		TransitionCancel,
		TransitionComplete,
		TransitionHold,
		TransitionResume,
		TransitionStart,
	} {
		if CanApply(name, status) {
			out = append(out, name)
		}
	}
	return out
}
