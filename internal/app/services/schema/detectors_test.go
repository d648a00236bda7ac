package schema

import (
	"reflect"
	"sort"
	"testing"

	"github.com/appforge/platform/internal/app/domain/schema"
)

func detectedNames(dets []Detection) []string {
	names := make([]string, 0, len(dets))
	for _, d := range dets {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

func TestScopedReferenceDetector(t *testing.T) {
	source := `
		const rows = await supabase.from('app_77_notes').select('*');
		const more = await supabase.from("app_${appId}_bookmarks").select("*");
	`
	dets := ScopedReferenceDetector{}.Detect(source)
	if got := detectedNames(dets); !reflect.DeepEqual(got, []string{"bookmarks", "notes"}) {
		t.Fatalf("detected = %v, want [bookmarks notes]", got)
	}
	for _, d := range dets {
		if d.Scope != schema.UserScoped {
			t.Errorf("scope for %s = %s, want user_scoped", d.Name, d.Scope)
		}
	}
}

func TestKeywordDetector(t *testing.T) {
	dets := KeywordDetector{}.Detect("A simple Todo list with app settings")
	got := detectedNames(dets)
	if !reflect.DeepEqual(got, []string{"settings", "todos"}) {
		t.Fatalf("detected = %v, want [settings todos]", got)
	}
}

func TestDetectTablesDedupesExplicitFirst(t *testing.T) {
	// "notes" appears both as a scoped reference and via the "note"
	// keyword; the explicit detection must win.
	source := `fetch('app_77_notes'); // render the note editor and todo list`
	dets := DetectTables(DefaultDetectors(), source)

	if got := detectedNames(dets); !reflect.DeepEqual(got, []string{"notes", "todos"}) {
		t.Fatalf("detected = %v, want [notes todos]", got)
	}
	for _, d := range dets {
		if d.Name == "notes" && len(d.Columns) != 0 {
			t.Fatalf("explicit detection must win dedupe, got keyword columns %v", d.Columns)
		}
	}
}

func TestDetectTablesDeterministic(t *testing.T) {
	source := `app_1_zebra app_1_alpha and a note with a todo and a task`
	a := DetectTables(DefaultDetectors(), source)
	b := DetectTables(DefaultDetectors(), source)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("detection order must be reproducible for the same input")
	}
}

func TestDetectTablesOnlyValidNames(t *testing.T) {
	long := "app_1_a23456789012345678901234567890123456789012345678901234567890"
	for _, d := range DetectTables(DefaultDetectors(), long) {
		if err := schema.ValidateLogicalName(d.Name); err != nil {
			t.Fatalf("invalid logical name %q passed the filter", d.Name)
		}
	}
}
