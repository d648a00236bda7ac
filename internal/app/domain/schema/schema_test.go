package schema

import (
	"strings"
	"testing"
)

func TestScopedName(t *testing.T) {
	if got := ScopedName("todos", "42"); got != "app_42_todos" {
		t.Fatalf("ScopedName = %q, want app_42_todos", got)
	}
}

func TestValidateLogicalName(t *testing.T) {
	valid := []string{"todos", "Notes", "a", "table_2", "userProfiles"}
	for _, name := range valid {
		if err := ValidateLogicalName(name); err != nil {
			t.Errorf("ValidateLogicalName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "1table", "_todos", "to-dos", "drop table", "todos;", strings.Repeat("a", 51)}
	for _, name := range invalid {
		if err := ValidateLogicalName(name); err == nil {
			t.Errorf("ValidateLogicalName(%q) = nil, want error", name)
		}
	}
}
