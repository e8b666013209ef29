package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "error with cause",
			err:      Wrap(KindStorage, "report.create", "failed to create report", errors.New("disk full")),
			contains: []string{"[storage:report.create]", "failed to create report", "disk full"},
		},
		{
			name:     "error without cause",
			err:      New(KindValidation, "form.validate", "age must be between 0 and 160"),
			contains: []string{"[validation:form.validate]", "age must be between 0 and 160"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestWrap_KeepsTypedError(t *testing.T) {
	inner := New(KindOracle, "quality.check", "image quality check failed")
	outer := Wrap(KindStorage, "other", "other", fmt.Errorf("context: %w", inner))
	if outer != inner {
		t.Fatalf("expected typed error to be returned unchanged, got %v", outer)
	}
	if Wrap(KindConfig, "op", "msg", nil) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindConfig, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestIsKindAndKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{"direct match", New(KindValidation, "op", "m"), KindValidation, true},
		{"wrapped match", fmt.Errorf("outer: %w", Wrap(KindOracle, "op", "m", errors.New("c"))), KindOracle, true},
		{"mismatch", New(KindConfig, "op", "m"), KindStorage, false},
		{"plain error", errors.New("plain"), KindConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", got, tt.expected)
			}
		})
	}

	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors should report KindUnknown")
	}
}

func TestReason(t *testing.T) {
	if got := Reason(New(KindValidation, "form", "missing required fields: age")); got != "missing required fields: age" {
		t.Errorf("unexpected reason %q", got)
	}
	if got := Reason(errors.New("raw")); got != "raw" {
		t.Errorf("unexpected reason %q", got)
	}
	if Reason(nil) != "" {
		t.Error("nil error should have empty reason")
	}
}
