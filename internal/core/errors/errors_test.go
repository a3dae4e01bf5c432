package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "module not found")
		if err.Error() != "[NOT_FOUND] module not found" {
			t.Errorf("expected [NOT_FOUND] module not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid input")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("AddContextKeepsCode", func(t *testing.T) {
		err := Wrap(MalformedImport(3, "expected identifier"), CodeParse, "scan failed")
		err = AddContext(err, CtxPath, "src/A.php")
		if !IsCode(err, CodeParse) {
			t.Fatalf("expected CodeParse, got %v", err)
		}
		var de *DomainError
		if !errors.As(err, &de) || de.Context[CtxPath] != "src/A.php" {
			t.Fatalf("expected path context, got %v", err)
		}
	})

	t.Run("AddContextWrapsPlainError", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxOperation, "scan")
		if !IsCode(err, CodeInternal) {
			t.Fatalf("expected CodeInternal, got %v", err)
		}
	})
}

func TestParseErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind ParseKind
		msg  string
	}{
		{StreamExhausted(), ErrStreamExhausted, "token stream exhausted"},
		{PreconditionViolated("advance first"), ErrPreconditionViolated, "cursor precondition violated: advance first"},
		{MalformedImport(7, "expected identifier"), ErrMalformedImport, "malformed import at line 7: expected identifier"},
		{DuplicateAlias(2, "B", `X\B`, `A\B`), ErrDuplicateAlias, `duplicated import alias "B" for "X\\B" at line 2, previous "A\\B"`},
		{Unbalanced(9, "{...}"), ErrUnbalanced, "unbalanced {...} at line 9"},
		{InvalidTypeSyntax("int["), ErrInvalidTypeSyntax, `expected a type string, got "int["`},
	}

	for _, tt := range tests {
		if !IsKind(tt.err, tt.kind) {
			t.Errorf("IsKind(%v, %s) = false", tt.err, tt.kind)
		}
		if got := tt.err.Error(); got != tt.msg {
			t.Errorf("Error() = %q, want %q", got, tt.msg)
		}
		wrapped := fmt.Errorf("outer: %w", tt.err)
		if KindOf(wrapped) != tt.kind {
			t.Errorf("KindOf(wrapped) = %s, want %s", KindOf(wrapped), tt.kind)
		}
	}

	if KindOf(errors.New("plain")) != 0 {
		t.Error("expected zero kind for plain error")
	}
	if ErrUnbalanced.String() != "unbalanced" {
		t.Errorf("unexpected kind name %q", ErrUnbalanced.String())
	}
}
