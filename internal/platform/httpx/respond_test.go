package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOKEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	OK(rr, http.StatusOK, map[string]string{"hello": "world"})

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !env.Success {
		t.Fatal("expected success envelope")
	}
}

func TestFailEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Fail(rr, http.StatusForbidden, "nope")

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Success {
		t.Fatal("expected failure envelope")
	}
	if env.Message != "nope" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrapped: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", ErrConflict), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		if rr.Code != tc.status {
			t.Fatalf("error %v: expected status %d, got %d", tc.err, tc.status, rr.Code)
		}
		var env Envelope
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.Success {
			t.Fatalf("error %v: expected failure envelope", tc.err)
		}
	}
}
