package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"plain", errors.New("boom"), Unknown},
		{"sentinel", ErrAlreadyMember, Conflict},
		{"wrapped sentinel", fmt.Errorf("failed to add member: %w", ErrAlreadyMember), Conflict},
		{"wrap", Wrap(Unavailable, errors.New("database is locked"), "failed to query"), Unavailable},
		{"invariant", ErrSoleAdminCannotLeave, InvariantViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := Wrap(Unavailable, cause, "failed to delete membership")

	if !errors.Is(err, cause) {
		t.Error("expected wrapped error to match its cause")
	}
	if err.Message() != "failed to delete membership" {
		t.Errorf("unexpected message: %q", err.Message())
	}
	if err.Error() != "failed to delete membership: disk I/O error" {
		t.Errorf("unexpected error string: %q", err.Error())
	}
}

func TestSentinelIdentity(t *testing.T) {
	err := fmt.Errorf("remove member: %w", ErrSoleAdminCannotLeave)
	if !errors.Is(err, ErrSoleAdminCannotLeave) {
		t.Error("expected errors.Is to match the sentinel")
	}
	if errors.Is(err, ErrLastAdminRequired) {
		t.Error("sentinels of the same kind must stay distinct")
	}
	if !Is(err, InvariantViolation) {
		t.Error("expected InvariantViolation kind")
	}
}
