// Package emit renders Schema/Instance/Mapping values as textual
// statements for external systems: SQL DDL/DML for two dialects and
// openCypher for a property-graph store. Emitters are pure functions over
// these in-memory values — none of them opens a connection.
package emit

import "github.com/lychee-technology/catrust"

// Dialect tags which target language a Command's Text is written in.
type Dialect string

const (
	DialectPostgres      Dialect = "postgres"
	DialectDuckDB        Dialect = "duckdb"
	DialectPropertyGraph Dialect = "propertygraph"
)

// Command is one tagged textual statement produced by an Emitter.
type Command struct {
	Dialect Dialect
	Text    string
}

// Emitter translates Schema/Instance/Mapping values into Commands for one
// target dialect.
type Emitter interface {
	Name() string
	DeploySchema(schema *catrust.Schema) ([]Command, error)
	ExportInstance(schema *catrust.Schema, instance *catrust.Instance) ([]Command, error)
	GenerateDelta(mapping *catrust.Mapping, source, target *catrust.Schema) ([]Command, error)
	GenerateSigma(mapping *catrust.Mapping, source, target *catrust.Schema) ([]Command, error)
}
