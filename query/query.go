// Package query implements the engine's in-memory query language: an
// ordered list of QueryBlocks, each a FROM/WHERE/SELECT unit evaluated
// directly over an Instance, with an optional path-optimization pass
// through internal/pathoptimizer before evaluation. A query's result is
// itself a catrust.Instance, built from a schema assembled implicitly from
// each block's target entity.
package query

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lychee-technology/catrust"
	"github.com/lychee-technology/catrust/internal/pathoptimizer"
)

// Var names a FROM-bound variable within a single query block.
type Var string

// VarPath is a Path rooted at a query variable rather than at a literal
// node: Var.Hops...Attr, evaluated by resolving Var to its currently bound
// row and then following the remaining hops/attribute from there.
type VarPath struct {
	Var  Var
	Hops []catrust.EdgeName
	Attr catrust.AttrName
}

func (p VarPath) asSchemaPath(from catrust.NodeName) catrust.Path {
	return catrust.Path{From: from, Hops: p.Hops, Attr: p.Attr}
}

// WhereClause compares the value reached by Left against either a literal
// Value or, when RightVar is non-nil, the value reached by RightVar.
type WhereClause struct {
	Left     VarPath
	Op       catrust.CompareOp
	Value    catrust.Value
	RightVar *VarPath
}

// QueryBlock is one FROM/WHERE/SELECT unit: a Cartesian product over From,
// filtered by Where (conjunction, short-circuiting on the first failing
// clause), projected into TargetEntity's table of the result instance.
// Select holds attribute bindings (result attribute name -> a path ending
// in an attribute); FKBindings holds foreign-key bindings (result edge
// name -> a path ending at a node), carried into the result row as a real
// row pointer rather than a flattened value.
type QueryBlock struct {
	TargetEntity catrust.NodeName
	From         map[Var]catrust.NodeName
	Where        []WhereClause
	Select       map[string]VarPath
	FKBindings   map[string]VarPath
}

// CqlQuery is a named, ordered list of QueryBlocks. Its result schema is
// built implicitly at evaluation time from each block's TargetEntity and
// bindings (see buildResultSchema); AddBlock only appends blocks.
type CqlQuery struct {
	Name   string
	Blocks []QueryBlock
}

// NewCqlQuery constructs an empty, named query.
func NewCqlQuery(name string) *CqlQuery {
	return &CqlQuery{Name: name}
}

// AddBlock appends block to the query's ordered block list and returns q,
// so calls chain: NewCqlQuery("x").AddBlock(...).AddBlock(...).
func (q *CqlQuery) AddBlock(block QueryBlock) *CqlQuery {
	q.Blocks = append(q.Blocks, block)
	return q
}

// Optimize rewrites every path appearing in a WHERE clause, a Select
// binding, or an FKBindings binding, whatever its length: it constructs a
// Path anchored at the variable's bound entity, runs it through opt using
// rules derived from schema, and substitutes the result, in place. A path
// no rule matches is left as it was.
func (q *CqlQuery) Optimize(schema *catrust.Schema, opt *pathoptimizer.Optimizer) *CqlQuery {
	rules := opt.AnalyzeSchema(schema)
	for bi := range q.Blocks {
		b := &q.Blocks[bi]
		for wi := range b.Where {
			b.Where[wi].Left = rewriteVarPath(opt, rules, b.From[b.Where[wi].Left.Var], b.Where[wi].Left)
			if b.Where[wi].RightVar != nil {
				r := rewriteVarPath(opt, rules, b.From[b.Where[wi].RightVar.Var], *b.Where[wi].RightVar)
				b.Where[wi].RightVar = &r
			}
		}
		for alias, p := range b.Select {
			b.Select[alias] = rewriteVarPath(opt, rules, b.From[p.Var], p)
		}
		for alias, p := range b.FKBindings {
			b.FKBindings[alias] = rewriteVarPath(opt, rules, b.From[p.Var], p)
		}
	}
	return q
}

func rewriteVarPath(opt *pathoptimizer.Optimizer, rules []pathoptimizer.RewriteRule, from catrust.NodeName, p VarPath) VarPath {
	rewritten, _ := opt.Optimize(p.asSchemaPath(from), rules)
	return VarPath{Var: p.Var, Hops: rewritten.Hops, Attr: rewritten.Attr}
}

// buildResultSchema constructs the schema of a query's result instance,
// built implicitly from each block's target entity plus its attribute and
// foreign-key bindings, matching §4.5's "result schema built implicitly
// from block target entities."
func buildResultSchema(source *catrust.Schema, blocks []QueryBlock) (*catrust.Schema, error) {
	rs := catrust.NewSchema()
	for _, b := range blocks {
		if err := rs.AddNode(b.TargetEntity); err != nil {
			return nil, err
		}
		for alias, p := range b.Select {
			attr, ok := source.Attribute(p.Attr)
			if !ok {
				return nil, catrust.NewCatrustError(catrust.ErrorTypeEvaluation, catrust.ErrCodeUnknownEdge,
					fmt.Sprintf("select binding %q references unknown attribute %q", alias, p.Attr))
			}
			if err := rs.AddAttribute(catrust.AttrName(alias), b.TargetEntity, attr.Sort); err != nil {
				return nil, err
			}
		}
		for alias, p := range b.FKBindings {
			fromNode, ok := b.From[p.Var]
			if !ok {
				return nil, catrust.NewCatrustError(catrust.ErrorTypeEvaluation, catrust.ErrCodeUnknownVariable,
					fmt.Sprintf("fk binding %q references unbound variable %q", alias, p.Var))
			}
			targetNode, err := staticEndpoint(source, fromNode, p.Hops)
			if err != nil {
				return nil, err
			}
			if err := rs.AddNode(targetNode); err != nil {
				return nil, err
			}
			if err := rs.AddForeignKey(catrust.EdgeName(alias), b.TargetEntity, targetNode); err != nil {
				return nil, err
			}
		}
	}
	return rs, nil
}

// staticEndpoint walks hops from node `from` through schema's declared
// foreign keys and returns the node reached. Every hop's target node is
// fixed by the schema, not by instance data, so this needs no row to
// resolve.
func staticEndpoint(schema *catrust.Schema, from catrust.NodeName, hops []catrust.EdgeName) (catrust.NodeName, error) {
	cur := from
	for _, hop := range hops {
		fk, ok := schema.ForeignKey(hop)
		if !ok {
			return "", catrust.NewCatrustError(catrust.ErrorTypeEvaluation, catrust.ErrCodeUnknownEdge,
				fmt.Sprintf("unknown foreign key %q", hop))
		}
		cur = fk.To
	}
	return cur, nil
}

// EvalResult is the outcome of evaluating a CqlQuery: the result instance
// carrying every projected row, plus the instrumentation the evaluator
// collects while scanning.
type EvalResult struct {
	ResultSchema *catrust.Schema
	Instance     *catrust.Instance
	RowsScanned  int
	RowsReturned int
	Elapsed      time.Duration
}

// Column collects the non-null values of attr on every row of entity in
// the result instance — the slice aggregate.go's functions fold over.
func (r *EvalResult) Column(entity catrust.NodeName, attr catrust.AttrName) []catrust.Value {
	rows := r.Instance.Rows(entity)
	out := make([]catrust.Value, 0, len(rows))
	for _, row := range rows {
		if v, ok := row.Attrs[attr]; ok && !v.IsNull() {
			out = append(out, v)
		}
	}
	return out
}

// Evaluator executes CqlQuery values against a Schema/Instance pair.
type Evaluator struct {
	cfg catrust.EvaluatorConfig
	log *zap.SugaredLogger
}

// NewEvaluator constructs an Evaluator. A nil logger is replaced with a
// no-op logger.
func NewEvaluator(cfg catrust.EvaluatorConfig, log *zap.SugaredLogger) *Evaluator {
	if log == nil {
		log = catrust.NewLogger(nil, catrust.SubsystemEvaluator)
	}
	return &Evaluator{cfg: cfg, log: log}
}

// EvalQuery evaluates q directly against instance, with no path
// optimization: every VarPath is followed hop by hop exactly as written.
func (e *Evaluator) EvalQuery(schema *catrust.Schema, instance *catrust.Instance, q CqlQuery) (*EvalResult, error) {
	return e.eval(schema, instance, q, nil)
}

// EvalQueryOptimized evaluates q against instance after rewriting every
// VarPath through rules (typically obtained from
// pathoptimizer.Optimizer.AnalyzeSchema(schema)), eliminating redundant
// foreign-key hops before any row is scanned.
func (e *Evaluator) EvalQueryOptimized(schema *catrust.Schema, instance *catrust.Instance, q CqlQuery, opt *pathoptimizer.Optimizer, rules []pathoptimizer.RewriteRule) (*EvalResult, error) {
	return e.eval(schema, instance, q, func(from catrust.NodeName, p VarPath) VarPath {
		rewritten, _ := opt.Optimize(p.asSchemaPath(from), rules)
		return VarPath{Var: p.Var, Hops: rewritten.Hops, Attr: rewritten.Attr}
	})
}

func (e *Evaluator) eval(schema *catrust.Schema, instance *catrust.Instance, q CqlQuery, rewrite func(catrust.NodeName, VarPath) VarPath) (*EvalResult, error) {
	start := time.Now()

	if len(q.Blocks) == 0 {
		return nil, catrust.NewCatrustError(catrust.ErrorTypeEvaluation, catrust.ErrCodeEmptyFromVars,
			fmt.Sprintf("query %q has no blocks", q.Name))
	}

	resultSchema, err := buildResultSchema(schema, q.Blocks)
	if err != nil {
		return nil, err
	}

	result := &EvalResult{ResultSchema: resultSchema, Instance: catrust.NewInstance(resultSchema)}
	for _, block := range q.Blocks {
		if err := e.evalBlock(schema, instance, q.Name, block, rewrite, result); err != nil {
			return nil, err
		}
	}

	result.Elapsed = time.Since(start)
	e.log.Debugw("query evaluated", "name", q.Name, "rowsScanned", result.RowsScanned, "rowsReturned", result.RowsReturned, "elapsedMicros", result.Elapsed.Microseconds())
	if e.cfg.SlowQueryThreshold > 0 && result.Elapsed > e.cfg.SlowQueryThreshold {
		e.log.Warnw("slow query", "name", q.Name, "elapsedMicros", result.Elapsed.Microseconds(), "thresholdMicros", e.cfg.SlowQueryThreshold.Microseconds())
	}

	return result, nil
}

// evalBlock scans block's Cartesian product of From bindings, matching
// Where and, for each survivor, inserting the projected row into result's
// Instance under block.TargetEntity.
func (e *Evaluator) evalBlock(schema *catrust.Schema, instance *catrust.Instance, queryName string, block QueryBlock, rewrite func(catrust.NodeName, VarPath) VarPath, result *EvalResult) error {
	vars := make([]Var, 0, len(block.From))
	for v := range block.From {
		vars = append(vars, v)
	}
	if len(vars) == 0 {
		return catrust.NewCatrustError(catrust.ErrorTypeEvaluation, catrust.ErrCodeEmptyFromVars,
			fmt.Sprintf("query %q has no FROM variables", queryName))
	}

	varNode := make(map[Var]catrust.NodeName, len(vars))
	for v, n := range block.From {
		if !schema.HasNode(n) {
			return catrust.NewCatrustError(catrust.ErrorTypeEvaluation, catrust.ErrCodeUnknownNode,
				fmt.Sprintf("FROM variable %q binds unknown node %q", v, n))
		}
		varNode[v] = n
	}

	where, sel, fkSel := block.Where, block.Select, block.FKBindings
	if rewrite != nil {
		where = make([]WhereClause, len(block.Where))
		for i, w := range block.Where {
			rewritten := w
			rewritten.Left = rewrite(varNode[w.Left.Var], w.Left)
			if w.RightVar != nil {
				r := rewrite(varNode[w.RightVar.Var], *w.RightVar)
				rewritten.RightVar = &r
			}
			where[i] = rewritten
		}
		sel = make(map[string]VarPath, len(block.Select))
		for alias, p := range block.Select {
			sel[alias] = rewrite(varNode[p.Var], p)
		}
		fkSel = make(map[string]VarPath, len(block.FKBindings))
		for alias, p := range block.FKBindings {
			fkSel[alias] = rewrite(varNode[p.Var], p)
		}
	}

	bindings := make(map[Var]catrust.RowId, len(vars))

	var scan func(i int) error
	scan = func(i int) error {
		if i == len(vars) {
			result.RowsScanned++
			ok, err := matchesWhere(instance, varNode, bindings, where)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			row, err := project(instance, varNode, bindings, sel, fkSel)
			if err != nil {
				return err
			}
			if _, err := result.Instance.Insert(block.TargetEntity, row); err != nil {
				return err
			}
			result.RowsReturned++
			return nil
		}
		v := vars[i]
		for id := range instance.Rows(varNode[v]) {
			bindings[v] = id
			if err := scan(i + 1); err != nil {
				return err
			}
		}
		return nil
	}

	return scan(0)
}

func matchesWhere(instance *catrust.Instance, varNode map[Var]catrust.NodeName, bindings map[Var]catrust.RowId, where []WhereClause) (bool, error) {
	for _, w := range where {
		left, err := resolve(instance, varNode, bindings, w.Left)
		if err != nil {
			return false, err
		}
		var right catrust.PathValue
		if w.RightVar != nil {
			right, err = resolve(instance, varNode, bindings, *w.RightVar)
			if err != nil {
				return false, err
			}
		} else {
			right = catrust.PathValue{IsAttr: true, Value: w.Value}
		}
		if !comparePathValues(left, w.Op, right) {
			return false, nil
		}
	}
	return true, nil
}

func resolve(instance *catrust.Instance, varNode map[Var]catrust.NodeName, bindings map[Var]catrust.RowId, p VarPath) (catrust.PathValue, error) {
	node, id := varNode[p.Var], bindings[p.Var]
	return instance.FollowPath(node, id, p.asSchemaPath(node))
}

func comparePathValues(left catrust.PathValue, op catrust.CompareOp, right catrust.PathValue) bool {
	if left.IsNull || right.IsNull {
		return op == catrust.OpNeq
	}
	return catrust.Compare(left.Value, op, right.Value)
}

// project resolves sel (attribute bindings) and fkSel (foreign-key
// bindings) against the current var bindings and builds the row's
// EntityData, to be inserted into the result instance — matching §4.5 step
// 4's "insert the projected row into the result EntityData". An fkSel
// binding carries the real RowId reached by its path, not a synthesized
// label.
func project(instance *catrust.Instance, varNode map[Var]catrust.NodeName, bindings map[Var]catrust.RowId, sel, fkSel map[string]VarPath) (catrust.EntityData, error) {
	row := catrust.EntityData{
		Attrs: make(map[catrust.AttrName]catrust.Value, len(sel)),
		FKs:   make(map[catrust.EdgeName]*catrust.RowId, len(fkSel)),
	}
	for alias, p := range sel {
		node, id := varNode[p.Var], bindings[p.Var]
		pv, err := instance.FollowPath(node, id, p.asSchemaPath(node))
		if err != nil {
			return catrust.EntityData{}, err
		}
		if pv.IsNull {
			row.Attrs[catrust.AttrName(alias)] = catrust.NullValue()
			continue
		}
		row.Attrs[catrust.AttrName(alias)] = pv.Value
	}
	for alias, p := range fkSel {
		node, id := varNode[p.Var], bindings[p.Var]
		pv, err := instance.FollowPath(node, id, p.asSchemaPath(node))
		if err != nil {
			return catrust.EntityData{}, err
		}
		if pv.IsNull {
			continue
		}
		target := pv.Row
		row.FKs[catrust.EdgeName(alias)] = &target
	}
	return row, nil
}
