package session

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type fixedNames []string

func (f *fixedNames) Generate() string {
	name := (*f)[0]
	*f = (*f)[1:]
	return name
}

func TestDeriveKeepsProvidedUsername(t *testing.T) {
	opts, err := Derive("  Steve ", nil)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if opts.Username != "Steve" {
		t.Fatalf("username = %q, want Steve", opts.Username)
	}
	if opts.SessionID == uuid.Nil {
		t.Fatalf("expected session id to be set")
	}
	if opts.AuthToken != "" {
		t.Fatalf("derived options must carry no token, got %q", opts.AuthToken)
	}
}

func TestDeriveGeneratesNameForBlankUsername(t *testing.T) {
	names := &fixedNames{"Generated1"}
	opts, err := Derive("", names)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if opts.Username != "Generated1" {
		t.Fatalf("username = %q, want Generated1", opts.Username)
	}
}

func TestDeriveRequiresNameSourceForBlankUsername(t *testing.T) {
	if _, err := Derive(" ", nil); err == nil {
		t.Fatalf("expected error without a name source")
	}
}

func TestDeriveIssuesFreshSessionIDs(t *testing.T) {
	a, err := Derive("Alex", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Derive("Alex", nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.SessionID == b.SessionID {
		t.Fatalf("session ids must differ between launches")
	}
	if strings.Contains(a.CompactID(), "-") || len(a.CompactID()) != 32 {
		t.Fatalf("compact id malformed: %s", a.CompactID())
	}
}

func TestGeneratorNeverRepeatsConsecutively(t *testing.T) {
	g := NewGenerator(rand.NewPCG(1, 2))
	prev := g.Generate()
	for i := 0; i < 500; i++ {
		next := g.Generate()
		if next == prev {
			t.Fatalf("generator repeated %q at iteration %d", next, i)
		}
		if next == "" || len(next) > maxNameLen {
			t.Fatalf("invalid name %q", next)
		}
		prev = next
	}
}
