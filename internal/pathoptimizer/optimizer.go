// Package pathoptimizer rewrites schema paths using the path equations
// declared on a Schema, eliminating redundant foreign-key hops the way the
// teacher's queryoptimizer eliminates redundant table joins — except the
// rewrite target here is an algebraic Path, not a generated SQL join tree.
package pathoptimizer

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/lychee-technology/catrust"
)

// RewriteRule rewrites occurrences of From (a path from some node) into To,
// a shorter-or-equal path denoting the same morphism. Rules are derived
// from a schema's path equations by AnalyzeSchema.
type RewriteRule struct {
	From catrust.Path
	To   catrust.Path
}

// Optimizer rewrites paths against a set of rules derived from a schema,
// bounded by the configured pass count.
type Optimizer struct {
	cfg catrust.OptimizerConfig
	log *zap.SugaredLogger
}

// New constructs an Optimizer. A nil logger is replaced with a no-op
// logger, matching the core package's NewLogger default.
func New(cfg catrust.OptimizerConfig, log *zap.SugaredLogger) *Optimizer {
	if log == nil {
		log = catrust.NewLogger(nil, catrust.SubsystemOptimizer)
	}
	return &Optimizer{cfg: cfg, log: log}
}

// AnalyzeSchema derives rewrite rules from schema's path equations. Each
// equation orients into a rule whose From side is the longer (or, on a tie,
// lexicographically larger) path, since that is the side rewriting should
// eliminate hops from. Transitive rules are then derived by chaining rules
// that share an endpoint, for at most cfg.MaxAnalyzeDepth chaining passes, the
// same bounded-closure approach the teacher's optimizer uses when building
// its derived join table.
func (o *Optimizer) AnalyzeSchema(schema *catrust.Schema) []RewriteRule {
	eqs := schema.PathEquations()
	rules := make([]RewriteRule, 0, len(eqs))
	for _, eq := range eqs {
		rules = append(rules, orient(eq))
	}

	for depth := 0; depth < o.cfg.MaxAnalyzeDepth; depth++ {
		added := false
		for _, a := range rules {
			for _, b := range rules {
				if !pathsEqual(a.To, b.From) {
					continue
				}
				candidate := RewriteRule{From: a.From, To: b.To}
				if ruleLen(candidate.To) >= ruleLen(candidate.From) {
					continue
				}
				if containsRule(rules, candidate) {
					continue
				}
				rules = append(rules, candidate)
				added = true
			}
		}
		if !added {
			break
		}
	}

	o.log.Debugw("derived rewrite rules", "equationCount", len(eqs), "ruleCount", len(rules))
	return rules
}

func orient(eq catrust.PathEquation) RewriteRule {
	lLen, rLen := ruleLen(eq.Left), ruleLen(eq.Right)
	if lLen > rLen {
		return RewriteRule{From: eq.Left, To: eq.Right}
	}
	if rLen > lLen {
		return RewriteRule{From: eq.Right, To: eq.Left}
	}
	if eq.Left.String() > eq.Right.String() {
		return RewriteRule{From: eq.Left, To: eq.Right}
	}
	return RewriteRule{From: eq.Right, To: eq.Left}
}

func ruleLen(p catrust.Path) int {
	n := len(p.Hops)
	if p.IsAttributePath() {
		n++
	}
	return n
}

func pathsEqual(a, b catrust.Path) bool { return a.String() == b.String() }

func containsRule(rules []RewriteRule, r RewriteRule) bool {
	for _, existing := range rules {
		if pathsEqual(existing.From, r.From) && pathsEqual(existing.To, r.To) {
			return true
		}
	}
	return false
}

// Optimize rewrites path against rules, repeatedly substituting any
// contiguous run of path's hops, at any offset, that matches a rule's From
// side with that rule's To side (see applyOnePass),
// until no rule applies or cfg.MaxPasses passes have run — whichever comes
// first. It returns the rewritten path and how many hops were eliminated.
func (o *Optimizer) Optimize(path catrust.Path, rules []RewriteRule) (catrust.Path, int) {
	o.log.Infow("optimizer inputs", "path", path.String(), "ruleCount", len(rules))

	current := path
	originalHops := ruleLen(path)
	for pass := 0; pass < o.cfg.MaxPasses; pass++ {
		rewritten, ok := applyOnePass(current, rules)
		if !ok {
			break
		}
		current = rewritten
	}

	eliminated := originalHops - ruleLen(current)
	if eliminated < 0 {
		eliminated = 0
	}
	o.log.Debugw("optimize complete", "result", current.String(), "joins_eliminated", eliminated)
	return current, eliminated
}

// applyOnePass tries every rule against every contiguous run of path's hop
// sequence — not only the prefix — and applies the first match it finds.
// A match at offset 0 requires the rule's domain to agree with path's own
// domain; a match at any later offset needs no such check, since the edges
// composing a well-formed path already fix the node each hop starts from,
// so an interior hop-sequence match is domain-consistent by construction.
// A rule whose From side ends in an attribute is the exception: it matches
// only a path equal to that From side as a whole, and rewrites it to To.
func applyOnePass(path catrust.Path, rules []RewriteRule) (catrust.Path, bool) {
	sortedRules := make([]RewriteRule, len(rules))
	copy(sortedRules, rules)
	sort.Slice(sortedRules, func(i, j int) bool { return ruleLen(sortedRules[i].From) > ruleLen(sortedRules[j].From) })

	for _, rule := range sortedRules {
		if rule.From.IsAttributePath() {
			if rule.From.From != path.From || !path.IsAttributePath() || len(rule.From.Hops) != len(path.Hops) {
				continue
			}
			if !hopsEqual(rule.From.Hops, path.Hops) || rule.From.Attr != path.Attr {
				continue
			}
			return rule.To, true
		}
		n := len(rule.From.Hops)
		if n == 0 || n > len(path.Hops) {
			continue
		}
		for offset := 0; offset+n <= len(path.Hops); offset++ {
			if offset == 0 && rule.From.From != path.From {
				continue
			}
			if !hopsEqual(rule.From.Hops, path.Hops[offset:offset+n]) {
				continue
			}
			var rewrittenHops []catrust.EdgeName
			rewrittenHops = append(rewrittenHops, path.Hops[:offset]...)
			rewrittenHops = append(rewrittenHops, rule.To.Hops...)
			rewrittenHops = append(rewrittenHops, path.Hops[offset+n:]...)
			return catrust.Path{From: path.From, Hops: rewrittenHops, Attr: path.Attr}, true
		}
	}
	return path, false
}

func hopsEqual(a, b []catrust.EdgeName) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ComposeMappings composes first: A -> B with second: B -> C into a single
// mapping A -> C, by pushing every node/foreign-key/attribute image of
// first through second. Returns a composition CatrustError if first's
// target and second's source are not the same schema value.
func ComposeMappings(first, second *catrust.Mapping) (*catrust.Mapping, error) {
	if first.Target != second.Source {
		return nil, catrust.NewCatrustError(catrust.ErrorTypeComposition, catrust.ErrCodeIncompatibleSchema,
			"first mapping's target is not second mapping's source")
	}

	composed := catrust.NewMapping(first.Source, second.Target)

	for _, n := range first.Source.Nodes() {
		mid, ok := first.NodeImage(n.Name)
		if !ok {
			continue
		}
		final, ok := second.NodeImage(mid)
		if !ok {
			continue
		}
		if err := composed.MapNode(n.Name, final); err != nil {
			return nil, err
		}
	}

	for _, fk := range first.Source.ForeignKeys() {
		midPath, ok := first.FKImage(fk.Name)
		if !ok {
			continue
		}
		finalPath, err := second.ImagePath(midPath)
		if err != nil {
			return nil, fmt.Errorf("composing foreign key %q: %w", fk.Name, err)
		}
		if err := composed.MapFK(fk.Name, finalPath); err != nil {
			return nil, err
		}
	}

	for _, a := range first.Source.Attributes() {
		midPath, ok := first.AttrImage(a.Name)
		if !ok {
			continue
		}
		finalPath, err := second.ImagePath(midPath)
		if err != nil {
			return nil, fmt.Errorf("composing attribute %q: %w", a.Name, err)
		}
		if err := composed.MapAttr(a.Name, finalPath); err != nil {
			return nil, err
		}
	}

	return composed, nil
}
