package repository

import (
	"strings"
	"testing"
)

func TestBuildContainsConditionSQLite(t *testing.T) {
	condition, args := buildContainsConditionByDialect("sqlite", []string{"user_id", "invite_code"}, "  AbC ")
	if len(args) != 2 {
		t.Fatalf("arg count want 2 got %d", len(args))
	}
	if !strings.Contains(condition, "LOWER(user_id) LIKE ?") {
		t.Fatalf("condition should contain lowered user_id, got %s", condition)
	}
	if !strings.Contains(condition, " OR ") {
		t.Fatalf("condition should join columns with OR, got %s", condition)
	}
	if args[0] != "%abc%" {
		t.Fatalf("pattern want %%abc%% got %v", args[0])
	}
}

func TestBuildContainsConditionPostgres(t *testing.T) {
	condition, _ := buildContainsConditionByDialect("postgres", []string{"invite_code"}, "inv")
	if !strings.Contains(condition, "invite_code ILIKE ?") {
		t.Fatalf("postgres should use ILIKE, got %s", condition)
	}
}

func TestBuildContainsConditionEscapesWildcards(t *testing.T) {
	_, args := buildContainsConditionByDialect("sqlite", []string{"user_id"}, "a_b%")
	if args[0] != `%a\_b\%%` {
		t.Fatalf("wildcards should be escaped, got %v", args[0])
	}
}

func TestBuildContainsConditionEmptyKeyword(t *testing.T) {
	condition, args := buildContainsConditionByDialect("sqlite", []string{"user_id"}, "   ")
	if condition != "" || args != nil {
		t.Fatalf("empty keyword should produce no condition, got %q %v", condition, args)
	}
}
