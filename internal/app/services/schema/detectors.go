package schema

import (
	"regexp"
	"sort"
	"strings"

	"github.com/appforge/platform/internal/app/domain/schema"
)

// Detection is one logical table a detector found in generated source,
// along with any column shape the detector can vouch for.
type Detection struct {
	Name    string
	Scope   schema.ScopeType
	Columns []schema.Column
}

// Detector scans generated application source for logical tables the app
// expects to exist. Detectors run in a fixed order and results are
// deduplicated by logical name, first detector wins.
type Detector interface {
	Name() string
	Detect(source string) []Detection
}

// DefaultDetectors returns the standard detector chain: the explicit
// scoped-reference pattern first, the keyword heuristic second.
func DefaultDetectors() []Detector {
	return []Detector{
		ScopedReferenceDetector{},
		KeywordDetector{},
	}
}

// DetectTables runs the detector chain over source and returns the
// deduplicated detections in deterministic order.
func DetectTables(detectors []Detector, source string) []Detection {
	seen := make(map[string]struct{})
	var out []Detection
	for _, d := range detectors {
		found := d.Detect(source)
		sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
		for _, det := range found {
			if _, dup := seen[det.Name]; dup {
				continue
			}
			if schema.ValidateLogicalName(det.Name) != nil {
				continue
			}
			seen[det.Name] = struct{}{}
			out = append(out, det)
		}
	}
	return out
}

// scopedRefPattern matches physical-looking table references in generated
// source: app_<id>_<logical>, where the id segment can be a literal app id
// or a template placeholder.
var scopedRefPattern = regexp.MustCompile(`app_(?:[0-9a-zA-Z-]+|\$\{[^}]*\}|\{[^}]*\})_([a-zA-Z][a-zA-Z0-9_]*)`)

// ScopedReferenceDetector extracts logical names from explicit scoped
// table references. These carry the strongest signal: generated code is
// already addressing the physical table.
type ScopedReferenceDetector struct{}

func (ScopedReferenceDetector) Name() string { return "scoped-reference" }

func (ScopedReferenceDetector) Detect(source string) []Detection {
	seen := make(map[string]struct{})
	var out []Detection
	for _, match := range scopedRefPattern.FindAllStringSubmatch(source, -1) {
		logical := match[1]
		if _, dup := seen[logical]; dup {
			continue
		}
		seen[logical] = struct{}{}
		out = append(out, Detection{
			Name:  logical,
			Scope: schema.UserScoped,
		})
	}
	return out
}

// keywordTable binds a source keyword to the well-known logical table it
// implies, with the column shape such apps conventionally use.
type keywordTable struct {
	keyword string
	table   string
	scope   schema.ScopeType
	columns []schema.Column
}

// keywordTables is the coarse heuristic mapping. The heuristic can both
// over- and under-detect; it is kept conservative and deterministic
// rather than clever.
var keywordTables = []keywordTable{
	{
		keyword: "todo",
		table:   "todos",
		scope:   schema.UserScoped,
		columns: []schema.Column{
			{Name: "title", Type: "text", Required: true},
			{Name: "completed", Type: "boolean", Default: "false"},
			{Name: "position", Type: "numeric", Default: "0"},
		},
	},
	{
		keyword: "note",
		table:   "notes",
		scope:   schema.UserScoped,
		columns: []schema.Column{
			{Name: "title", Type: "text"},
			{Name: "content", Type: "text"},
		},
	},
	{
		keyword: "task",
		table:   "tasks",
		scope:   schema.UserScoped,
		columns: []schema.Column{
			{Name: "title", Type: "text", Required: true},
			{Name: "status", Type: "text", Default: "'open'"},
			{Name: "due_at", Type: "timestamptz"},
		},
	},
	{
		keyword: "message",
		table:   "messages",
		scope:   schema.UserScoped,
		columns: []schema.Column{
			{Name: "body", Type: "text", Required: true},
			{Name: "channel", Type: "text"},
		},
	},
	{
		keyword: "comment",
		table:   "comments",
		scope:   schema.UserScoped,
		columns: []schema.Column{
			{Name: "body", Type: "text", Required: true},
			{Name: "parent_id", Type: "text"},
		},
	},
	{
		keyword: "setting",
		table:   "settings",
		scope:   schema.AppScoped,
		columns: []schema.Column{
			{Name: "key", Type: "text", Required: true},
			{Name: "value", Type: "jsonb", Default: "{}"},
		},
	},
}

// KeywordDetector implies well-known logical tables from domain words in
// the source text.
type KeywordDetector struct{}

func (KeywordDetector) Name() string { return "keyword" }

func (KeywordDetector) Detect(source string) []Detection {
	lower := strings.ToLower(source)
	var out []Detection
	for _, kt := range keywordTables {
		if !strings.Contains(lower, kt.keyword) {
			continue
		}
		cols := make([]schema.Column, len(kt.columns))
		copy(cols, kt.columns)
		out = append(out, Detection{
			Name:    kt.table,
			Scope:   kt.scope,
			Columns: cols,
		})
	}
	return out
}
