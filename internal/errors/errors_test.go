package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestRejectClassification(t *testing.T) {
	holder := uuid.New()
	conflict := NewConflictError("100.5", holder)
	if !IsReject(conflict) {
		t.Fatalf("expected IsReject=true for conflict error")
	}
	ce, ok := AsConflict(conflict)
	if !ok {
		t.Fatalf("expected AsConflict to match")
	}
	if ce.Key != "100.5" || ce.Holder != holder {
		t.Fatalf("conflict fields lost: %+v", ce)
	}

	if !IsReject(NewOwnerMismatchError()) {
		t.Fatalf("expected owner mismatch classified as reject")
	}
	if !IsReject(NewOwnerCapError(3)) {
		t.Fatalf("expected owner cap classified as reject")
	}
	// Rejections wrapped with context must still classify.
	wrapped := fmt.Errorf("accept: %w", NewOwnerCapError(2))
	if !IsReject(wrapped) {
		t.Fatalf("expected wrapped reject recognized")
	}
}

func TestSignatureClassification(t *testing.T) {
	root := stdErrors.New("root")
	wrapped := fmt.Errorf("adding context: %w", root)
	se := NewSignatureError("verify.advertisement", wrapped)
	if !IsSignature(se) {
		t.Fatalf("expected IsSignature=true")
	}
	if IsReject(se) {
		t.Fatalf("signature failure is fatal, not a reject")
	}
	if !stdErrors.Is(se, root) {
		t.Fatalf("expected errors.Is to find root cause")
	}
	var typed *SignatureError
	if !stdErrors.As(se, &typed) {
		t.Fatalf("expected errors.As to *SignatureError")
	}
	if typed.Op != "verify.advertisement" {
		t.Fatalf("unexpected op: %s", typed.Op)
	}
}

func TestInputAndTransport(t *testing.T) {
	ie := NewInputError("parse.frequency", stdErrors.New("bad decimal"))
	if !IsInput(ie) {
		t.Fatalf("expected input classification")
	}
	if IsSignature(ie) || IsReject(ie) {
		t.Fatalf("input error misclassified")
	}

	te := NewTransportError("ipc.read", nil)
	if s := te.Error(); s == "" {
		t.Fatalf("empty transport error string")
	}
	if IsInput(te) || IsReject(te) {
		t.Fatalf("transport error misclassified")
	}
}

func TestNilSafety(t *testing.T) {
	if IsReject(nil) {
		t.Fatalf("nil should not be reject")
	}
	if IsSignature(nil) {
		t.Fatalf("nil should not be signature")
	}
	if IsInput(nil) {
		t.Fatalf("nil should not be input")
	}
}

func TestNilErrBranchesAndStrings(t *testing.T) {
	for _, err := range []error{
		NewInputError("op1", nil),
		NewSignatureError("op2", nil),
		NewTransportError("op3", nil),
		NewConflictError("90", uuid.Nil),
		NewOwnerMismatchError(),
		NewOwnerCapError(1),
	} {
		if err == nil {
			t.Fatalf("constructor returned nil")
		}
		if err.Error() == "" {
			t.Fatalf("expected non-empty error string for %T", err)
		}
	}
}

func TestNegativePredicates(t *testing.T) {
	plain := stdErrors.New("plain")
	if IsReject(plain) {
		t.Fatalf("plain error shouldn't be reject")
	}
	if IsSignature(plain) {
		t.Fatalf("plain error shouldn't be signature")
	}
}
