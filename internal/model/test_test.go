package model

import "testing"

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status TestStatus
		want   bool
	}{
		{TestStatusNotStarted, false},
		{TestStatusInProgress, false},
		{TestStatusSubmitted, true},
		{TestStatusAbandoned, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to TestStatus
		want     bool
	}{
		{TestStatusNotStarted, TestStatusInProgress, true},
		{TestStatusNotStarted, TestStatusAbandoned, true},
		{TestStatusNotStarted, TestStatusSubmitted, false},
		{TestStatusInProgress, TestStatusSubmitted, true},
		{TestStatusInProgress, TestStatusAbandoned, true},
		{TestStatusInProgress, TestStatusNotStarted, false},
		{TestStatusSubmitted, TestStatusInProgress, false},
		{TestStatusSubmitted, TestStatusAbandoned, false},
		{TestStatusAbandoned, TestStatusSubmitted, false},
		{TestStatusAbandoned, TestStatusInProgress, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s → %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPatchEmpty(t *testing.T) {
	var p TestPatch
	if !p.Empty() {
		t.Error("zero patch should be empty")
	}

	score := 10
	p.Score = &score
	if p.Empty() {
		t.Error("patch with score should not be empty")
	}
}
