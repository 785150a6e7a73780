package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrNotAMember, http.StatusForbidden},
		{ErrValidation, http.StatusBadRequest},
		{ErrUserAlreadyExists, http.StatusBadRequest},
		{ErrCapacityExceeded, http.StatusConflict},
		{ErrAlreadyMember, http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		if got := HTTPStatusFromError(c.err); got != c.want {
			t.Errorf("HTTPStatusFromError(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestHTTPStatusFromWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("%w: room is full", ErrCapacityExceeded)
	if got := HTTPStatusFromError(wrapped); got != http.StatusConflict {
		t.Fatalf("wrapped sentinel should keep its status, got %d", got)
	}
}
