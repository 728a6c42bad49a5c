package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := NotFound("appointment.get", "appointment %s not found", "abc")
	wrapped := fmt.Errorf("load: %w", base)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("expected %q, got %q", KindNotFound, got)
	}
	if !Is(wrapped, KindNotFound) {
		t.Error("expected Is to match through wrapping")
	}
	if Is(nil, KindNotFound) {
		t.Error("nil error must not match any kind")
	}
}

func TestKindOf_Plain(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Errorf("expected unknown kind, got %q", got)
	}
}

func TestTransient_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transient("event.append", cause)
	if !errors.Is(err, cause) {
		t.Error("expected transient error to unwrap to its cause")
	}
}

func TestHTTPError_Status(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("x", "bad"), http.StatusBadRequest},
		{NotFound("x", "missing"), http.StatusNotFound},
		{Conflict("x", "taken"), http.StatusConflict},
		{Transient("x", errors.New("down")), http.StatusServiceUnavailable},
		{Invariant("x", "broken"), http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		he := HTTPError(tt.err)
		if he.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, he.Code)
		}
	}
}

func TestHTTPError_HidesInternalMessage(t *testing.T) {
	he := HTTPError(Invariant("schedule.get", "stored window inverted"))
	if he.Message != "internal server error" {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestError_Message(t *testing.T) {
	err := Validation("event.record", "note exceeds %d characters", 1000)
	if err.Error() != "event.record: note exceeds 1000 characters" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
