package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCategoryDecode, CodeMissingIdentity, "record has no entity identity")
	want := "[DECODE:MISSING_IDENTITY] record has no entity identity"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	cause := errors.New("connection refused")
	wrapped := Wrap(ErrCategorySearch, CodeIndexWriteFailed, "indexing book b-1", cause)
	if wrapped.Error() != "[SEARCH:INDEX_WRITE_FAILED] indexing book b-1: connection refused" {
		t.Errorf("unexpected wrapped format: %q", wrapped.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrCategoryAnalytics, CodeEventWriteFailed, "writing event", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match the cause")
	}

	var pe *PipelineError
	if !errors.As(fmt.Errorf("outer: %w", err), &pe) {
		t.Fatal("expected errors.As to find PipelineError")
	}
	if pe.Code != CodeEventWriteFailed {
		t.Errorf("expected code %s, got %s", CodeEventWriteFailed, pe.Code)
	}
}

func TestIsMatchesCategoryAndCode(t *testing.T) {
	a := New(ErrCategorySummary, CodeSummaryConflict, "a")
	b := New(ErrCategorySummary, CodeSummaryConflict, "b")
	c := New(ErrCategorySummary, CodeSummaryWriteFailed, "c")

	if !errors.Is(a, b) {
		t.Error("expected same category+code to match")
	}
	if errors.Is(a, c) {
		t.Error("expected different code not to match")
	}
}

func TestRetryability(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{NewDecodeError(CodeMissingIdentity, "m"), false},
		{NewSearchError(CodeIndexWriteFailed, "m", nil), true},
		{NewSummaryError(CodeSummaryWriteFailed, "m", nil), true},
		{NewSummaryError(CodeSummaryConflict, "m", nil), false},
		{errors.New("plain"), false},
	}

	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.retryable {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
	}
}
