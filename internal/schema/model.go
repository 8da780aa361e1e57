package schema

import "strings"

// TableSchema is a dialect-neutral snapshot of one table. Snapshots are built
// by an Introspector and are not modified afterwards.
type TableSchema struct {
	Name        string
	Columns     []ColumnSchema
	PrimaryKey  []string
	Indexes     []IndexSchema
	ForeignKeys []ForeignKeySchema
	Constraints []ConstraintSchema
	RowCount    int64
}

type ColumnSchema struct {
	Name          string
	Type          string // dialect-native, may carry length/precision
	Nullable      bool
	DefaultValue  *string
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
}

type IndexSchema struct {
	Name      string
	TableName string
	Columns   []string
	Unique    bool
	Partial   string // predicate text without WHERE
}

type ForeignKeySchema struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          string
	OnUpdate          string
}

type ConstraintType string

const (
	ConstraintCheck      ConstraintType = "CHECK"
	ConstraintUnique     ConstraintType = "UNIQUE"
	ConstraintPrimaryKey ConstraintType = "PRIMARY_KEY"
)

type ConstraintSchema struct {
	Name       string
	Type       ConstraintType
	Expression string // CHECK: boolean expression; UNIQUE/PRIMARY_KEY: column list
}

// Column returns the column with the given name.
func (t *TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

func (t *TableSchema) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

func (t *TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Dependencies lists the other tables this table references.
func (t *TableSchema) Dependencies() []string {
	var deps []string
	seen := make(map[string]bool)
	for _, fk := range t.ForeignKeys {
		if fk.ReferencedTable == t.Name || seen[fk.ReferencedTable] {
			continue
		}
		seen[fk.ReferencedTable] = true
		deps = append(deps, fk.ReferencedTable)
	}
	return deps
}

// ByName indexes tables by name.
func ByName(tables []*TableSchema) map[string]*TableSchema {
	m := make(map[string]*TableSchema, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return m
}

// Filter keeps tables named in include (all when empty) and not named in
// exclude. Matching is case-insensitive.
func Filter(tables []*TableSchema, include, exclude []string) []*TableSchema {
	inc := lowerSet(include)
	exc := lowerSet(exclude)

	var out []*TableSchema
	for _, t := range tables {
		key := strings.ToLower(t.Name)
		if len(inc) > 0 && !inc[key] {
			continue
		}
		if exc[key] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func lowerSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return set
}
