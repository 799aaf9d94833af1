// Package propertygraph renders Schema/Instance values as openCypher text:
// nodes become CREATE (:Label {...}) statements and foreign keys become
// MATCH ... CREATE (a)-[:REL]->(b) statements — the property-graph target
// the engine's purpose line promises alongside its two SQL dialects.
package propertygraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lychee-technology/catrust"
	"github.com/lychee-technology/catrust/emit"
)

// Emitter renders openCypher text.
type Emitter struct{}

// New constructs a property-graph Emitter.
func New() Emitter { return Emitter{} }

func (Emitter) Name() string { return string(emit.DialectPropertyGraph) }

func literal(v catrust.Value) (string, error) {
	if v.IsNull() {
		return "null", nil
	}
	switch v.Sort {
	case catrust.SortString, catrust.SortCustom:
		s := v.Str
		if v.Sort == catrust.SortCustom {
			s = v.Custom
		}
		return "'" + strings.ReplaceAll(s, "'", "\\'") + "'", nil
	case catrust.SortInt:
		return strconv.FormatInt(v.Int, 10), nil
	case catrust.SortFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case catrust.SortBool:
		return strconv.FormatBool(v.Bool), nil
	default:
		return "", catrust.NewCatrustError(catrust.ErrorTypeEvaluation, catrust.ErrCodeKindMismatch,
			fmt.Sprintf("propertygraph emitter: unsupported sort %q", v.Sort))
	}
}

// DeploySchema has no structural analogue in a schemaless property graph;
// it returns a comment per node documenting the label and property keys a
// deployment would carry, so the Emitter interface is still fully
// implemented.
func (e Emitter) DeploySchema(schema *catrust.Schema) ([]emit.Command, error) {
	var cmds []emit.Command
	for _, n := range schema.Nodes() {
		var props []string
		for _, a := range schema.AttributesOf(n.Name) {
			props = append(props, string(a.Name))
		}
		text := fmt.Sprintf("// label %s, properties: %s", n.Name, strings.Join(props, ", "))
		cmds = append(cmds, emit.Command{Dialect: emit.DialectPropertyGraph, Text: text})
	}
	return cmds, nil
}

// ExportInstance renders one CREATE per node row and one MATCH...CREATE per
// populated foreign key.
func (e Emitter) ExportInstance(schema *catrust.Schema, instance *catrust.Instance) ([]emit.Command, error) {
	var cmds []emit.Command

	for _, n := range schema.Nodes() {
		attrs := schema.AttributesOf(n.Name)
		for id, row := range instance.Rows(n.Name) {
			var props []string
			props = append(props, fmt.Sprintf("%s: %d", catrust.ReservedColumnName, id))
			for _, a := range attrs {
				lit, err := literal(row.Attrs[a.Name])
				if err != nil {
					return nil, err
				}
				props = append(props, fmt.Sprintf("%s: %s", a.Name, lit))
			}
			text := fmt.Sprintf("CREATE (:%s {%s})", n.Name, strings.Join(props, ", "))
			cmds = append(cmds, emit.Command{Dialect: emit.DialectPropertyGraph, Text: text})
		}
	}

	for _, n := range schema.Nodes() {
		for _, fk := range schema.EdgesFrom(n.Name) {
			for id, row := range instance.Rows(n.Name) {
				target := row.FKs[fk.Name]
				if target == nil {
					continue
				}
				text := fmt.Sprintf(
					"MATCH (a:%s {%s: %d}), (b:%s {%s: %d}) CREATE (a)-[:%s]->(b)",
					n.Name, catrust.ReservedColumnName, id,
					fk.To, catrust.ReservedColumnName, *target,
					strings.ToUpper(string(fk.Name)),
				)
				cmds = append(cmds, emit.Command{Dialect: emit.DialectPropertyGraph, Text: text})
			}
		}
	}

	return cmds, nil
}

// GenerateDelta has no direct openCypher analogue for a pullback across two
// distinct graphs in a single statement stream; it renders one comment per
// source node naming the mapping's image label, matching emit/postgres and
// emit/duckdb's direct-image-only restriction.
func (e Emitter) GenerateDelta(mapping *catrust.Mapping, source, target *catrust.Schema) ([]emit.Command, error) {
	return generateNote(mapping, source, "pulled back from")
}

// GenerateSigma renders one comment per source node naming the mapping's
// image label rows would be pushed into.
func (e Emitter) GenerateSigma(mapping *catrust.Mapping, source, target *catrust.Schema) ([]emit.Command, error) {
	return generateNote(mapping, source, "pushed forward to")
}

func generateNote(mapping *catrust.Mapping, source *catrust.Schema, verb string) ([]emit.Command, error) {
	var cmds []emit.Command
	for _, n := range source.Nodes() {
		img, ok := mapping.NodeImage(n.Name)
		if !ok {
			cmds = append(cmds, emit.Command{Dialect: emit.DialectPropertyGraph,
				Text: fmt.Sprintf("// node %s has no image; skipped", n.Name)})
			continue
		}
		cmds = append(cmds, emit.Command{Dialect: emit.DialectPropertyGraph,
			Text: fmt.Sprintf("// label %s is %s label %s", n.Name, verb, img)})
	}
	return cmds, nil
}
