package models

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		current, target string
		want            bool
	}{
		{TaskStatusPosted, TaskStatusAccepted, true},
		{TaskStatusAccepted, TaskStatusInProgress, true},
		{TaskStatusInProgress, TaskStatusCompleted, true},

		// No skipping forward.
		{TaskStatusPosted, TaskStatusInProgress, false},
		{TaskStatusPosted, TaskStatusCompleted, false},
		{TaskStatusAccepted, TaskStatusCompleted, false},

		// No generic reverse edges; unclaim is a distinct operation.
		{TaskStatusAccepted, TaskStatusPosted, false},
		{TaskStatusInProgress, TaskStatusAccepted, false},
		{TaskStatusCompleted, TaskStatusInProgress, false},
		{TaskStatusCompleted, TaskStatusPosted, false},

		// A no-op is always legal.
		{TaskStatusPosted, TaskStatusPosted, true},
		{TaskStatusAccepted, TaskStatusAccepted, true},
		{TaskStatusInProgress, TaskStatusInProgress, true},
		{TaskStatusCompleted, TaskStatusCompleted, true},
	}
	for _, c := range cases {
		if got := ValidTransition(c.current, c.target); got != c.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", c.current, c.target, got, c.want)
		}
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	if got := AllowedTransitions(TaskStatusCompleted); len(got) != 0 {
		t.Errorf("COMPLETED should have no outgoing transitions, got %v", got)
	}
}

// Every status must be reachable from POSTED along forward edges, and
// IN_PROGRESS must only be reachable through ACCEPTED.
func TestForwardReachability(t *testing.T) {
	all := []string{TaskStatusPosted, TaskStatusAccepted, TaskStatusInProgress, TaskStatusCompleted}

	reached := map[string]bool{TaskStatusPosted: true}
	frontier := []string{TaskStatusPosted}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, s := range AllowedTransitions(next) {
			if !reached[s] {
				reached[s] = true
				frontier = append(frontier, s)
			}
		}
	}
	for _, s := range all {
		if !reached[s] {
			t.Errorf("status %s is unreachable from POSTED", s)
		}
	}

	for _, s := range all {
		if s == TaskStatusAccepted {
			continue
		}
		if ValidTransition(s, TaskStatusInProgress) && s != TaskStatusInProgress {
			t.Errorf("IN_PROGRESS should only be reachable from ACCEPTED, but %s allows it", s)
		}
	}
}
