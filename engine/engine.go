// Package engine is a thin facade wiring the path optimizer, the
// evaluator, the migration functors, and the code emitters together —
// generalizing the teacher's factory package, which wires a repository,
// transformer, and schema registry behind one constructor, to this
// library's in-memory components. Engine holds no per-call mutable state:
// it is safe for concurrent use across distinct Schema/Instance values.
package engine

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lychee-technology/catrust"
	"github.com/lychee-technology/catrust/emit"
	"github.com/lychee-technology/catrust/emit/duckdb"
	"github.com/lychee-technology/catrust/emit/postgres"
	"github.com/lychee-technology/catrust/emit/propertygraph"
	"github.com/lychee-technology/catrust/internal/migrate"
	"github.com/lychee-technology/catrust/internal/pathoptimizer"
	"github.com/lychee-technology/catrust/query"
)

// Engine bundles the engine's components behind one entry point: EvalQuery
// always runs through the path optimizer first, Delta/Sigma always log a
// per-call correlation id, and DeploySchema/ExportInstance dispatch to a
// named Emitter.
type Engine struct {
	cfg       *catrust.Config
	optimizer *pathoptimizer.Optimizer
	evaluator *query.Evaluator
	emitters  map[string]emit.Emitter
	log       *zap.SugaredLogger
}

// New constructs an Engine from cfg, registering the three built-in
// emitters (postgres, duckdb, propertygraph). A nil cfg uses
// catrust.DefaultConfig().
func New(cfg *catrust.Config) (*Engine, error) {
	if cfg == nil {
		cfg = catrust.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := catrust.NewLoggerForConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		optimizer: pathoptimizer.New(cfg.Optimizer, catrust.NewLogger(base, catrust.SubsystemOptimizer)),
		evaluator: query.NewEvaluator(cfg.Evaluator, catrust.NewLogger(base, catrust.SubsystemEvaluator)),
		emitters:  make(map[string]emit.Emitter),
		log:       catrust.NewLogger(base, catrust.SubsystemEmit),
	}

	for _, em := range []emit.Emitter{postgres.New(), duckdb.New(), propertygraph.New()} {
		e.RegisterEmitter(em)
	}

	return e, nil
}

// RegisterEmitter adds or replaces the emitter served under em.Name().
func (e *Engine) RegisterEmitter(em emit.Emitter) { e.emitters[em.Name()] = em }

// Emitter looks up a registered emitter by name.
func (e *Engine) Emitter(name string) (emit.Emitter, bool) {
	em, ok := e.emitters[name]
	return em, ok
}

// EvalQuery runs q against schema/instance through the path optimizer:
// schema's rewrite rules are derived fresh on every call (the optimizer
// itself is stateless; callers evaluating the same schema repeatedly
// should cache the rules themselves via Optimizer.AnalyzeSchema).
func (e *Engine) EvalQuery(schema *catrust.Schema, instance *catrust.Instance, q query.CqlQuery) (*query.EvalResult, error) {
	correlationID := uuid.Must(uuid.NewV7())
	rules := e.optimizer.AnalyzeSchema(schema)
	result, err := e.evaluator.EvalQueryOptimized(schema, instance, q, e.optimizer, rules)
	if err != nil {
		e.log.Errorw("eval_query failed", "correlationId", correlationID, "query", q.Name, "error", err)
		return nil, err
	}
	e.log.Infow("eval_query complete", "correlationId", correlationID, "query", q.Name,
		"rowsScanned", result.RowsScanned, "rowsReturned", result.RowsReturned)
	return result, nil
}

// Delta runs the Δ pullback of targetInstance along mapping, logging a
// correlation id and the resulting migration-note count.
func (e *Engine) Delta(mapping *catrust.Mapping, targetInstance *catrust.Instance) (*catrust.Instance, []migrate.MigrationNote) {
	correlationID := uuid.Must(uuid.NewV7())
	result, notes := migrate.Delta(mapping, targetInstance)
	e.log.Infow("delta complete", "correlationId", correlationID, "noteCount", len(notes))
	return result, notes
}

// Sigma runs the Σ left Kan extension of sourceInstance along mapping,
// logging a correlation id and the resulting migration-note count.
func (e *Engine) Sigma(mapping *catrust.Mapping, sourceInstance *catrust.Instance) (*catrust.Instance, []migrate.MigrationNote) {
	correlationID := uuid.Must(uuid.NewV7())
	result, notes := migrate.Sigma(mapping, sourceInstance)
	e.log.Infow("sigma complete", "correlationId", correlationID, "noteCount", len(notes))
	return result, notes
}

// DeploySchema dispatches to the named emitter's DeploySchema.
func (e *Engine) DeploySchema(dialect string, schema *catrust.Schema) ([]emit.Command, error) {
	em, ok := e.emitters[dialect]
	if !ok {
		return nil, fmt.Errorf("no emitter registered for dialect %q", dialect)
	}
	return em.DeploySchema(schema)
}

// ExportInstance dispatches to the named emitter's ExportInstance.
func (e *Engine) ExportInstance(dialect string, schema *catrust.Schema, instance *catrust.Instance) ([]emit.Command, error) {
	em, ok := e.emitters[dialect]
	if !ok {
		return nil, fmt.Errorf("no emitter registered for dialect %q", dialect)
	}
	return em.ExportInstance(schema, instance)
}
