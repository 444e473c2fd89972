package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMigrationID(t *testing.T) {
	tests := []struct {
		in   string
		want MigrationID
	}{
		{`Foo\Bar`, `Foo\Bar`},
		{`\Foo\Bar`, `Foo\Bar`},
		{`\\Foo\Bar`, `Foo\Bar`},
		{`  \Foo\Bar `, `Foo\Bar`},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := NewMigrationID(tt.in); got != tt.want {
			t.Errorf("NewMigrationID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMigrationID_Legacy(t *testing.T) {
	if got := NewMigrationID(`Foo\Bar`).Legacy(); got != `\Foo\Bar` {
		t.Errorf("expected legacy form, got %q", got)
	}
	if got := MigrationID(`\Foo\Bar`).Legacy(); got != `\Foo\Bar` {
		t.Errorf("expected single prefix, got %q", got)
	}
}

func TestMigrationDescriptor_DependsOn(t *testing.T) {
	d := MigrationDescriptor{
		ID:           "B",
		Dependencies: []MigrationID{`\A`, "C"},
	}
	if !d.DependsOn("A") {
		t.Error("expected legacy dependency to match canonical id")
	}
	if !d.DependsOn("C") {
		t.Error("expected dependency C")
	}
	if d.DependsOn("D") {
		t.Error("did not expect dependency D")
	}
}

func TestErrors_Unwrap(t *testing.T) {
	var err error = &DependencyNotMetError{Migration: "E", Dependency: "D"}
	if !errors.Is(err, ErrDependencyNotMet) {
		t.Error("expected ErrDependencyNotMet")
	}
	if !strings.Contains(err.Error(), "E") || !strings.Contains(err.Error(), "D") {
		t.Errorf("message should name both migrations: %s", err)
	}

	err = &RollbackError{Migration: "C", Reason: RollbackReasonDependedOn, Dependent: "B"}
	if !errors.Is(err, ErrRollbackUnsafe) {
		t.Error("expected ErrRollbackUnsafe")
	}
	var rbErr *RollbackError
	if !errors.As(err, &rbErr) || rbErr.Dependent != "B" {
		t.Errorf("expected RollbackError with dependent B, got %v", err)
	}

	if !errors.Is(&MigrationNotFoundError{Migration: "X"}, ErrMigrationNotFound) {
		t.Error("expected ErrMigrationNotFound")
	}
	if !errors.Is(&CyclicDependencyError{Migration: "X"}, ErrCyclicDependency) {
		t.Error("expected ErrCyclicDependency")
	}
}
