// Package postgres renders Schema/Instance/Mapping values as PostgreSQL
// DDL/DML text. Identifiers are quoted with lib/pq's QuoteIdentifier; each
// literal's value is wrapped in its jackc/pgx/v5 pgtype type and then
// written out with strconv or single-quote escaping. No connection is ever
// opened. Grounded in the teacher's
// postgres_persistent_repository*.go pgtype-typed column handling,
// repurposed from writing rows to printing SQL text for rows.
package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq"

	"github.com/lychee-technology/catrust"
	"github.com/lychee-technology/catrust/emit"
)

// Emitter renders PostgreSQL text.
type Emitter struct{}

// New constructs a PostgreSQL Emitter.
func New() Emitter { return Emitter{} }

func (Emitter) Name() string { return string(emit.DialectPostgres) }

func sortType(s catrust.Sort) string {
	switch s {
	case catrust.SortString:
		return "TEXT"
	case catrust.SortInt:
		return "BIGINT"
	case catrust.SortFloat:
		return "DOUBLE PRECISION"
	case catrust.SortBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func ident(name string) string { return pq.QuoteIdentifier(name) }

// literal renders v as a PostgreSQL literal. String, Int, Float and Bool
// values are wrapped in pgtype.Text/Int8/Float8/Bool and the wrapped value
// is formatted with strconv or single-quote escaping; no pgtype codec
// encodes the text.
func literal(v catrust.Value) (string, error) {
	if v.IsNull() {
		return "NULL", nil
	}
	switch v.Sort {
	case catrust.SortString:
		t := pgtype.Text{String: v.Str, Valid: true}
		return quoteLiteral(t.String), nil
	case catrust.SortInt:
		n := pgtype.Int8{Int64: v.Int, Valid: true}
		return strconv.FormatInt(n.Int64, 10), nil
	case catrust.SortFloat:
		f := pgtype.Float8{Float64: v.Float, Valid: true}
		return strconv.FormatFloat(f.Float64, 'g', -1, 64), nil
	case catrust.SortBool:
		b := pgtype.Bool{Bool: v.Bool, Valid: true}
		return strconv.FormatBool(b.Bool), nil
	case catrust.SortCustom:
		return quoteLiteral(v.Custom), nil
	default:
		return "", catrust.NewCatrustError(catrust.ErrorTypeEvaluation, catrust.ErrCodeKindMismatch,
			fmt.Sprintf("postgres emitter: unsupported sort %q", v.Sort))
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// DeploySchema renders one CREATE TABLE per node: a reserved catrust_id
// primary-key column, one column per attribute, and one column + REFERENCES
// per outgoing foreign key.
func (e Emitter) DeploySchema(schema *catrust.Schema) ([]emit.Command, error) {
	var cmds []emit.Command
	for _, n := range schema.Nodes() {
		var cols []string
		cols = append(cols, fmt.Sprintf("%s BIGINT PRIMARY KEY", ident(catrust.ReservedColumnName)))
		for _, a := range schema.AttributesOf(n.Name) {
			cols = append(cols, fmt.Sprintf("%s %s", ident(string(a.Name)), sortType(a.Sort)))
		}
		for _, fk := range schema.EdgesFrom(n.Name) {
			cols = append(cols, fmt.Sprintf("%s BIGINT REFERENCES %s(%s)",
				ident(string(fk.Name)), ident(string(fk.To)), ident(catrust.ReservedColumnName)))
		}
		text := fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", ident(string(n.Name)), strings.Join(cols, ",\n  "))
		cmds = append(cmds, emit.Command{Dialect: emit.DialectPostgres, Text: text})
	}
	return cmds, nil
}

// ExportInstance renders one INSERT per row.
func (e Emitter) ExportInstance(schema *catrust.Schema, instance *catrust.Instance) ([]emit.Command, error) {
	var cmds []emit.Command
	for _, n := range schema.Nodes() {
		attrs := schema.AttributesOf(n.Name)
		fks := schema.EdgesFrom(n.Name)

		var colNames []string
		colNames = append(colNames, catrust.ReservedColumnName)
		for _, a := range attrs {
			colNames = append(colNames, string(a.Name))
		}
		for _, fk := range fks {
			colNames = append(colNames, string(fk.Name))
		}

		for id, row := range instance.Rows(n.Name) {
			var vals []string
			vals = append(vals, strconv.FormatUint(uint64(id), 10))
			for _, a := range attrs {
				lit, err := literal(row.Attrs[a.Name])
				if err != nil {
					return nil, err
				}
				vals = append(vals, lit)
			}
			for _, fk := range fks {
				target := row.FKs[fk.Name]
				if target == nil {
					vals = append(vals, "NULL")
					continue
				}
				vals = append(vals, strconv.FormatUint(uint64(*target), 10))
			}
			var quotedCols []string
			for _, c := range colNames {
				quotedCols = append(quotedCols, ident(c))
			}
			text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
				ident(string(n.Name)), strings.Join(quotedCols, ", "), strings.Join(vals, ", "))
			cmds = append(cmds, emit.Command{Dialect: emit.DialectPostgres, Text: text})
		}
	}
	return cmds, nil
}

// GenerateDelta renders, for each source node, an INSERT ... SELECT that
// copies rows from the mapping's image node, mirroring Δ's pullback: the
// catrust_id column and each attribute column are populated from the
// corresponding image column when the attribute's image path is direct (no
// intervening foreign-key hops); longer or missing attribute images are
// annotated with a comment rather than guessed at. Foreign-key columns are
// not part of the statement.
func (e Emitter) GenerateDelta(mapping *catrust.Mapping, source, target *catrust.Schema) ([]emit.Command, error) {
	return generatePullPush(mapping, source, true)
}

// GenerateSigma renders, for each source node, an INSERT ... SELECT that
// pushes rows into the mapping's image node, mirroring Σ's left Kan
// extension under the same direct-image-only restriction as GenerateDelta.
func (e Emitter) GenerateSigma(mapping *catrust.Mapping, source, target *catrust.Schema) ([]emit.Command, error) {
	return generatePullPush(mapping, source, false)
}

func generatePullPush(mapping *catrust.Mapping, source *catrust.Schema, isDelta bool) ([]emit.Command, error) {
	var cmds []emit.Command
	for _, n := range source.Nodes() {
		img, ok := mapping.NodeImage(n.Name)
		if !ok {
			cmds = append(cmds, emit.Command{Dialect: emit.DialectPostgres,
				Text: fmt.Sprintf("-- node %q has no image; skipped", n.Name)})
			continue
		}

		var destCols, srcCols []string
		destTable, srcTable := string(n.Name), string(img)
		if !isDelta {
			destTable, srcTable = string(img), string(n.Name)
		}

		destCols = append(destCols, catrust.ReservedColumnName)
		srcCols = append(srcCols, catrust.ReservedColumnName)

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
		cmds = append(cmds, emit.Command{Dialect: emit.DialectPostgres, Text: text})
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
