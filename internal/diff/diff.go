// Package diff compares two schema snapshots.
package diff

import (
	"fmt"

	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"
	"db-migrate/internal/typemap"
)

type DifferenceType string

const (
	TableAdded        DifferenceType = "table_added"
	TableRemoved      DifferenceType = "table_removed"
	ColumnAdded       DifferenceType = "column_added"
	ColumnRemoved     DifferenceType = "column_removed"
	ColumnModified    DifferenceType = "column_modified"
	IndexAdded        DifferenceType = "index_added"
	IndexRemoved      DifferenceType = "index_removed"
	ConstraintAdded   DifferenceType = "constraint_added"
	ConstraintRemoved DifferenceType = "constraint_removed"
)

// Additive reports whether the difference is reconciled by creating a table,
// column or index in the target. Constraint deltas only produce warnings.
func (t DifferenceType) Additive() bool {
	switch t {
	case TableAdded, ColumnAdded, IndexAdded:
		return true
	}
	return false
}

// Details carries the schema fragments a difference was derived from.
// "Added" means present in the source and missing from the target.
type Details struct {
	Message      string
	SourceTable  *schema.TableSchema
	TargetTable  *schema.TableSchema
	SourceColumn *schema.ColumnSchema
	TargetColumn *schema.ColumnSchema
	Index        *schema.IndexSchema
	SourceCount  int
	TargetCount  int
}

type SchemaDifference struct {
	Type    DifferenceType
	Table   string
	Column  string
	Details Details
}

func (d SchemaDifference) String() string {
	return fmt.Sprintf("[%s] %s", d.Type, d.Details.Message)
}

type Result struct {
	Differences   []SchemaDifference
	Compatible    bool // no differences at all
	Summary       map[DifferenceType]int
	SourceDialect dialect.Kind
	TargetDialect dialect.Kind
	SourceTables  int
	TargetTables  int
}

// AdditiveDifferences returns the differences GenerateSyncSQL turns into DDL.
func (r Result) AdditiveDifferences() []SchemaDifference {
	var out []SchemaDifference
	for _, d := range r.Differences {
		if d.Type.Additive() {
			out = append(out, d)
		}
	}
	return out
}

// CompareSchemas diffs source against target. The output order depends only
// on the input order: tables added (source order), tables removed (target
// order), then per shared table in source order its column, index and
// constraint differences.
//
// Indexes are matched by name only and constraints are compared by count
// only; neither column lists nor CHECK expressions are compared.
func CompareSchemas(source, target []*schema.TableSchema, from, to dialect.Kind) Result {
	r := Result{
		Summary:       make(map[DifferenceType]int),
		SourceDialect: from,
		TargetDialect: to,
		SourceTables:  len(source),
		TargetTables:  len(target),
	}

	sourceByName := schema.ByName(source)
	targetByName := schema.ByName(target)

	for _, st := range source {
		if _, ok := targetByName[st.Name]; !ok {
			r.add(SchemaDifference{
				Type:  TableAdded,
				Table: st.Name,
				Details: Details{
					Message:     fmt.Sprintf("Table '%s' exists in source but not in target", st.Name),
					SourceTable: st,
				},
			})
		}
	}

	for _, tt := range target {
		if _, ok := sourceByName[tt.Name]; !ok {
			r.add(SchemaDifference{
				Type:  TableRemoved,
				Table: tt.Name,
				Details: Details{
					Message:     fmt.Sprintf("Table '%s' exists in target but not in source", tt.Name),
					TargetTable: tt,
				},
			})
		}
	}

	for _, st := range source {
		if tt, ok := targetByName[st.Name]; ok {
			compareColumns(&r, st, tt, from, to)
			compareIndexes(&r, st, tt)
			compareConstraints(&r, st, tt)
		}
	}

	r.Compatible = len(r.Differences) == 0
	return r
}

func (r *Result) add(d SchemaDifference) {
	r.Differences = append(r.Differences, d)
	r.Summary[d.Type]++
}

func compareColumns(r *Result, st, tt *schema.TableSchema, from, to dialect.Kind) {
	for i := range st.Columns {
		sc := &st.Columns[i]
		if !tt.HasColumn(sc.Name) {
			r.add(SchemaDifference{
				Type:   ColumnAdded,
				Table:  st.Name,
				Column: sc.Name,
				Details: Details{
					Message:      fmt.Sprintf("Column '%s.%s' exists in source but not in target", st.Name, sc.Name),
					SourceTable:  st,
					SourceColumn: sc,
				},
			})
		}
	}

	for i := range tt.Columns {
		tc := &tt.Columns[i]
		if !st.HasColumn(tc.Name) {
			r.add(SchemaDifference{
				Type:   ColumnRemoved,
				Table:  st.Name,
				Column: tc.Name,
				Details: Details{
					Message:      fmt.Sprintf("Column '%s.%s' exists in target but not in source", st.Name, tc.Name),
					TargetTable:  tt,
					TargetColumn: tc,
				},
			})
		}
	}

	for i := range st.Columns {
		sc := &st.Columns[i]
		for j := range tt.Columns {
			tc := &tt.Columns[j]
			if tc.Name != sc.Name {
				continue
			}
			typeOK := typemap.AreTypesCompatible(sc.Type, tc.Type, from, to)
			if typeOK && sc.Nullable == tc.Nullable {
				break
			}
			msg := fmt.Sprintf("Column '%s.%s' differs:", st.Name, sc.Name)
			if !typeOK {
				msg += fmt.Sprintf(" type %s -> %s", sc.Type, tc.Type)
			}
			if sc.Nullable != tc.Nullable {
				msg += fmt.Sprintf(" nullable %t -> %t", sc.Nullable, tc.Nullable)
			}
			r.add(SchemaDifference{
				Type:   ColumnModified,
				Table:  st.Name,
				Column: sc.Name,
				Details: Details{
					Message:      msg,
					SourceTable:  st,
					TargetTable:  tt,
					SourceColumn: sc,
					TargetColumn: tc,
				},
			})
			break
		}
	}
}

func compareIndexes(r *Result, st, tt *schema.TableSchema) {
	sourceIdx := make(map[string]bool, len(st.Indexes))
	for _, idx := range st.Indexes {
		sourceIdx[idx.Name] = true
	}
	targetIdx := make(map[string]bool, len(tt.Indexes))
	for _, idx := range tt.Indexes {
		targetIdx[idx.Name] = true
	}

	for i := range st.Indexes {
		idx := &st.Indexes[i]
		if !targetIdx[idx.Name] {
			r.add(SchemaDifference{
				Type:  IndexAdded,
				Table: st.Name,
				Details: Details{
					Message:     fmt.Sprintf("Index '%s' on '%s' exists in source but not in target", idx.Name, st.Name),
					SourceTable: st,
					Index:       idx,
				},
			})
		}
	}
	for i := range tt.Indexes {
		idx := &tt.Indexes[i]
		if !sourceIdx[idx.Name] {
			r.add(SchemaDifference{
				Type:  IndexRemoved,
				Table: st.Name,
				Details: Details{
					Message:     fmt.Sprintf("Index '%s' on '%s' exists in target but not in source", idx.Name, st.Name),
					TargetTable: tt,
					Index:       idx,
				},
			})
		}
	}
}

func compareConstraints(r *Result, st, tt *schema.TableSchema) {
	s, t := len(st.Constraints), len(tt.Constraints)
	switch {
	case s > t:
		r.add(SchemaDifference{
			Type:  ConstraintAdded,
			Table: st.Name,
			Details: Details{
				Message:     fmt.Sprintf("Table '%s' has %d constraints in source and %d in target", st.Name, s, t),
				SourceTable: st,
				TargetTable: tt,
				SourceCount: s,
				TargetCount: t,
			},
		})
	case s < t:
		r.add(SchemaDifference{
			Type:  ConstraintRemoved,
			Table: st.Name,
			Details: Details{
				Message:     fmt.Sprintf("Table '%s' has %d constraints in source and %d in target", st.Name, s, t),
				SourceTable: st,
				TargetTable: tt,
				SourceCount: s,
				TargetCount: t,
			},
		})
	}
}
