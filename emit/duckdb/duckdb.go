// Package duckdb renders Schema/Instance/Mapping values as DuckDB SQL
// text. It is a pure string-generation package: no DuckDB driver is
// imported or connected to, the same stance the teacher's
// internal/duckdb_type_mapper.go takes (it maps a value type to a SQL type
// name using nothing but fmt/time/uuid).
package duckdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lychee-technology/catrust"
	"github.com/lychee-technology/catrust/emit"
)

// Emitter renders DuckDB text.
type Emitter struct{}

// New constructs a DuckDB Emitter.
func New() Emitter { return Emitter{} }

func (Emitter) Name() string { return string(emit.DialectDuckDB) }

// sortType maps a Sort to its DuckDB SQL type name, generalizing the
// teacher's MapValueTypeToDuckDBType from forma.ValueType to catrust.Sort.
func sortType(s catrust.Sort) string {
	switch s {
	case catrust.SortString:
		return "VARCHAR"
	case catrust.SortInt:
		return "BIGINT"
	case catrust.SortFloat:
		return "DOUBLE"
	case catrust.SortBool:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

func ident(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }

func literal(v catrust.Value) (string, error) {
	if v.IsNull() {
		return "NULL", nil
	}
	switch v.Sort {
	case catrust.SortString, catrust.SortCustom:
		s := v.Str
		if v.Sort == catrust.SortCustom {
			s = v.Custom
		}
		return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
	case catrust.SortInt:
		return strconv.FormatInt(v.Int, 10), nil
	case catrust.SortFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case catrust.SortBool:
		return strconv.FormatBool(v.Bool), nil
	default:
		return "", catrust.NewCatrustError(catrust.ErrorTypeEvaluation, catrust.ErrCodeKindMismatch,
			fmt.Sprintf("duckdb emitter: unsupported sort %q", v.Sort))
	}
}

// DeploySchema renders one CREATE TABLE per node.
func (e Emitter) DeploySchema(schema *catrust.Schema) ([]emit.Command, error) {
	var cmds []emit.Command
	for _, n := range schema.Nodes() {
		cols := []string{fmt.Sprintf("%s BIGINT PRIMARY KEY", ident(catrust.ReservedColumnName))}
		for _, a := range schema.AttributesOf(n.Name) {
			cols = append(cols, fmt.Sprintf("%s %s", ident(string(a.Name)), sortType(a.Sort)))
		}
		for _, fk := range schema.EdgesFrom(n.Name) {
			cols = append(cols, fmt.Sprintf("%s BIGINT REFERENCES %s(%s)",
				ident(string(fk.Name)), ident(string(fk.To)), ident(catrust.ReservedColumnName)))
		}
		text := fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", ident(string(n.Name)), strings.Join(cols, ",\n  "))
		cmds = append(cmds, emit.Command{Dialect: emit.DialectDuckDB, Text: text})
	}
	return cmds, nil
}

// ExportInstance renders one INSERT per row.
func (e Emitter) ExportInstance(schema *catrust.Schema, instance *catrust.Instance) ([]emit.Command, error) {
	var cmds []emit.Command
	for _, n := range schema.Nodes() {
		attrs := schema.AttributesOf(n.Name)
		fks := schema.EdgesFrom(n.Name)
		for id, row := range instance.Rows(n.Name) {
			cols := []string{ident(catrust.ReservedColumnName)}
			vals := []string{strconv.FormatUint(uint64(id), 10)}
			for _, a := range attrs {
				lit, err := literal(row.Attrs[a.Name])
				if err != nil {
					return nil, err
				}
				cols = append(cols, ident(string(a.Name)))
				vals = append(vals, lit)
			}
			for _, fk := range fks {
				cols = append(cols, ident(string(fk.Name)))
				if target := row.FKs[fk.Name]; target != nil {
					vals = append(vals, strconv.FormatUint(uint64(*target), 10))
				} else {
					vals = append(vals, "NULL")
				}
			}
			text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
				ident(string(n.Name)), strings.Join(cols, ", "), strings.Join(vals, ", "))
			cmds = append(cmds, emit.Command{Dialect: emit.DialectDuckDB, Text: text})
		}
	}
	return cmds, nil
}

// GenerateDelta renders direct-image INSERT ... SELECT statements pulling
// rows back from the mapping's target schema, the same restriction emit/postgres
// applies to multi-hop images.
func (e Emitter) GenerateDelta(mapping *catrust.Mapping, source, target *catrust.Schema) ([]emit.Command, error) {
	return generatePullPush(mapping, source, true)
}

// GenerateSigma renders direct-image INSERT ... SELECT statements pushing
// rows forward into the mapping's target schema.
func (e Emitter) GenerateSigma(mapping *catrust.Mapping, source, target *catrust.Schema) ([]emit.Command, error) {
	return generatePullPush(mapping, source, false)
}

func generatePullPush(mapping *catrust.Mapping, source *catrust.Schema, isDelta bool) ([]emit.Command, error) {
	var cmds []emit.Command
	for _, n := range source.Nodes() {
		img, ok := mapping.NodeImage(n.Name)
		if !ok {
			cmds = append(cmds, emit.Command{Dialect: emit.DialectDuckDB,
				Text: fmt.Sprintf("-- node %q has no image; skipped", n.Name)})
			continue
		}

		destTable, srcTable := string(n.Name), string(img)
		if !isDelta {
			destTable, srcTable = string(img), string(n.Name)
		}

		destCols := []string{catrust.ReservedColumnName}
		srcCols := []string{catrust.ReservedColumnName}
		unsupported := false
		for _, a := range source.AttributesOf(n.Name) {
			path, ok := mapping.AttrImage(a.Name)
			if !ok || len(path.Hops) > 0 {
				unsupported = true
				continue
			}
			if isDelta {
				destCols = append(destCols, string(a.Name))
				srcCols = append(srcCols, string(path.Attr))
			} else {
				destCols = append(destCols, string(path.Attr))
				srcCols = append(srcCols, string(a.Name))
			}
		}

		text := fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s FROM %s;",
			ident(destTable), identList(destCols), identList(srcCols), ident(srcTable))
		if unsupported {
			text = "-- some attribute images use multi-hop paths and were omitted\n" + text
		}
		cmds = append(cmds, emit.Command{Dialect: emit.DialectDuckDB, Text: text})
	}
	return cmds, nil
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}
