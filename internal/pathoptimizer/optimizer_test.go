package pathoptimizer

import (
	"testing"

	"github.com/lychee-technology/catrust"
)

func buildOrderSchema(t *testing.T) *catrust.Schema {
	t.Helper()
	s := catrust.NewSchema()
	for _, n := range []catrust.NodeName{"Order", "Customer", "Address"} {
		if err := s.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n, err)
		}
	}
	if err := s.AddForeignKey("customer", "Order", "Customer"); err != nil {
		t.Fatalf("AddForeignKey(customer): %v", err)
	}
	if err := s.AddForeignKey("address", "Customer", "Address"); err != nil {
		t.Fatalf("AddForeignKey(address): %v", err)
	}
	if err := s.AddForeignKey("shipTo", "Order", "Address"); err != nil {
		t.Fatalf("AddForeignKey(shipTo): %v", err)
	}
	if err := s.AddPathEquation(
		catrust.Path{From: "Order", Hops: []catrust.EdgeName{"customer", "address"}},
		catrust.Path{From: "Order", Hops: []catrust.EdgeName{"shipTo"}},
	); err != nil {
		t.Fatalf("AddPathEquation: %v", err)
	}
	return s
}

func TestAnalyzeSchemaDerivesRule(t *testing.T) {
	s := buildOrderSchema(t)
	opt := New(catrust.OptimizerConfig{MaxPasses: 100, MaxAnalyzeDepth: 16}, nil)

	rules := opt.AnalyzeSchema(s)
	if len(rules) == 0 {
		t.Fatal("expected at least one derived rule")
	}

	found := false
	for _, r := range rules {
		if r.From.From == "Order" && len(r.From.Hops) == 2 && len(r.To.Hops) == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a rule rewriting the two-hop path to the one-hop path, got %+v", rules)
	}
}

func TestOptimizeEliminatesJoin(t *testing.T) {
	s := buildOrderSchema(t)
	opt := New(catrust.OptimizerConfig{MaxPasses: 100, MaxAnalyzeDepth: 16}, nil)
	rules := opt.AnalyzeSchema(s)

	path := catrust.Path{From: "Order", Hops: []catrust.EdgeName{"customer", "address"}}
	rewritten, eliminated := opt.Optimize(path, rules)

	if len(rewritten.Hops) != 1 || rewritten.Hops[0] != "shipTo" {
		t.Fatalf("expected rewrite to [shipTo], got %v", rewritten.Hops)
	}
	if eliminated != 1 {
		t.Errorf("expected 1 join eliminated, got %d", eliminated)
	}
}

func TestOptimizeNoMatchingRuleIsIdentity(t *testing.T) {
	s := buildOrderSchema(t)
	opt := New(catrust.OptimizerConfig{MaxPasses: 100, MaxAnalyzeDepth: 16}, nil)
	rules := opt.AnalyzeSchema(s)

	path := catrust.Path{From: "Customer", Hops: []catrust.EdgeName{"address"}}
	rewritten, eliminated := opt.Optimize(path, rules)

	if len(rewritten.Hops) != 1 || rewritten.Hops[0] != "address" {
		t.Fatalf("expected path unchanged, got %v", rewritten.Hops)
	}
	if eliminated != 0 {
		t.Errorf("expected 0 joins eliminated, got %d", eliminated)
	}
}

func buildEmployeeSchema(t *testing.T) *catrust.Schema {
	t.Helper()
	s := catrust.NewSchema()
	for _, n := range []catrust.NodeName{"Employee", "Department"} {
		if err := s.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n, err)
		}
	}
	if err := s.AddForeignKey("department", "Employee", "Department"); err != nil {
		t.Fatalf("AddForeignKey(department): %v", err)
	}
	if err := s.AddForeignKey("manager", "Department", "Employee"); err != nil {
		t.Fatalf("AddForeignKey(manager): %v", err)
	}
	if err := s.AddForeignKey("direct_mgr", "Employee", "Employee"); err != nil {
		t.Fatalf("AddForeignKey(direct_mgr): %v", err)
	}
	if err := s.AddPathEquation(
		catrust.Path{From: "Employee", Hops: []catrust.EdgeName{"department", "manager"}},
		catrust.Path{From: "Employee", Hops: []catrust.EdgeName{"direct_mgr"}},
	); err != nil {
		t.Fatalf("AddPathEquation: %v", err)
	}
	return s
}

func TestOptimizeAppliesRuleTwiceAtInteriorOffset(t *testing.T) {
	s := buildEmployeeSchema(t)
	opt := New(catrust.OptimizerConfig{MaxPasses: 100, MaxAnalyzeDepth: 16}, nil)
	rules := opt.AnalyzeSchema(s)

	path := catrust.Path{From: "Employee", Hops: []catrust.EdgeName{"department", "manager", "department", "manager"}}
	rewritten, eliminated := opt.Optimize(path, rules)

	want := []catrust.EdgeName{"direct_mgr", "direct_mgr"}
	if len(rewritten.Hops) != len(want) || rewritten.Hops[0] != want[0] || rewritten.Hops[1] != want[1] {
		t.Fatalf("expected rewrite to %v, got %v", want, rewritten.Hops)
	}
	if eliminated != 2 {
		t.Errorf("expected 2 joins eliminated, got %d", eliminated)
	}
}

func TestComposeMappingsIdentityChain(t *testing.T) {
	a := catrust.NewSchema()
	b := catrust.NewSchema()
	c := catrust.NewSchema()
	for _, s := range []*catrust.Schema{a, b, c} {
		if err := s.AddNode("Thing"); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	if err := a.AddAttribute("name", "Thing", catrust.SortString); err != nil {
		t.Fatalf("AddAttribute a: %v", err)
	}
	if err := b.AddAttribute("name", "Thing", catrust.SortString); err != nil {
		t.Fatalf("AddAttribute b: %v", err)
	}
	if err := c.AddAttribute("label", "Thing", catrust.SortString); err != nil {
		t.Fatalf("AddAttribute c: %v", err)
	}

	m1 := catrust.NewMapping(a, b)
	if err := m1.MapNode("Thing", "Thing"); err != nil {
		t.Fatalf("MapNode m1: %v", err)
	}
	if err := m1.MapAttrDirect("name", "name"); err != nil {
		t.Fatalf("MapAttrDirect m1: %v", err)
	}

	m2 := catrust.NewMapping(b, c)
	if err := m2.MapNode("Thing", "Thing"); err != nil {
		t.Fatalf("MapNode m2: %v", err)
	}
	if err := m2.MapAttrDirect("name", "label"); err != nil {
		t.Fatalf("MapAttrDirect m2: %v", err)
	}

	composed, err := ComposeMappings(m1, m2)
	if err != nil {
		t.Fatalf("ComposeMappings: %v", err)
	}

	img, ok := composed.AttrImage("name")
	if !ok {
		t.Fatal("expected composed mapping to carry an image for 'name'")
	}
	if img.Attr != "label" {
		t.Errorf("expected composed image attribute 'label', got %q", img.Attr)
	}
}
