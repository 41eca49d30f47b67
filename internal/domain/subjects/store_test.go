package subjects

import "testing"

func TestWhereNumbersArguments(t *testing.T) {
	clause, args := where("t1", Filter{Status: StatusActive, Query: "ada_50%"})
	want := " WHERE tenant_id = $1 AND status = $2 AND (full_name ILIKE $3 OR email ILIKE $3)"
	if clause != want {
		t.Fatalf("expected %q, got %q", want, clause)
	}
	if len(args) != 3 || args[2] != `%ada\_50\%%` {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestWhereTenantOnly(t *testing.T) {
	clause, args := where("t1", Filter{Query: "   "})
	if clause != " WHERE tenant_id = $1" || len(args) != 1 {
		t.Fatalf("unexpected clause %q with %d args", clause, len(args))
	}
}
