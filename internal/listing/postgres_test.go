package listing

import (
	"strings"
	"testing"

	"github.com/lib/pq"
)

func TestBuildWhere_NilFilter(t *testing.T) {
	where, args := buildWhere(nil)
	if where != "l.active = TRUE" {
		t.Errorf("unexpected clause: %s", where)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %d", len(args))
	}
}

func TestBuildWhere_PlaceholdersAreSequential(t *testing.T) {
	f := &Filter{
		ExcludeOwnerID: 42,
		Makes:          []string{" Toyota", "BMW "},
		MinYear:        intPtr(2010),
		MaxPrice:       floatPtr(15000),
		Used:           boolPtr(true),
	}

	where, args := buildWhere(f)

	wantFragments := []string{
		"l.active = TRUE",
		"l.owner_id <> $1",
		"lower(l.make) = ANY($2)",
		"l.year >= $3",
		"l.price <= $4",
		"l.used = $5",
	}
	for _, frag := range wantFragments {
		if !strings.Contains(where, frag) {
			t.Errorf("clause %q missing fragment %q", where, frag)
		}
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	if args[0] != int64(42) {
		t.Errorf("expected owner arg 42, got %v", args[0])
	}

	makes, ok := args[1].(*pq.StringArray)
	if !ok {
		t.Fatalf("expected *pq.StringArray for makes, got %T", args[1])
	}
	if (*makes)[0] != "toyota" || (*makes)[1] != "bmw" {
		t.Errorf("makes not normalized: %v", *makes)
	}
}
