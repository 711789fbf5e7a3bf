package xerrs

import (
	"errors"
	"strings"
	"testing"

	"github.com/jns4u/viperc/ast"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{InvalidType, "InvalidType"},
		{TypeMismatch, "TypeMismatch"},
		{VariableDeclaration, "VariableDeclaration"},
		{Structure, "Structure"},
		{ConstancyViolation, "ConstancyViolation"},
		{Kind(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestAtWithoutNode(t *testing.T) {
	err := At(Structure, nil, "bad thing: %d", 42)
	if err.Line != -1 {
		t.Errorf("Line = %d, want -1 for a nil node", err.Line)
	}
	if !strings.Contains(err.Error(), "bad thing: 42") {
		t.Errorf("Error() = %q, missing formatted message", err.Error())
	}
	if strings.Contains(err.Error(), "line") {
		t.Errorf("Error() = %q, should omit line info for a nil node", err.Error())
	}
}

func TestAtWithNode(t *testing.T) {
	n := ast.NewName(17, "x")
	err := At(TypeMismatch, n, "oops")
	if err.Line != 17 {
		t.Errorf("Line = %d, want 17", err.Line)
	}
	if !strings.Contains(err.Error(), "line 17") {
		t.Errorf("Error() = %q, want it to mention the line", err.Error())
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("underlying failure")
	err := Wrap(Structure, nil, cause, "translation failed")
	if !errors.Is(err, cause) {
		t.Error("Wrap() should let errors.Is find the wrapped cause")
	}
}
