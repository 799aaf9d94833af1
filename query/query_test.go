package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/catrust"
	"github.com/lychee-technology/catrust/internal/pathoptimizer"
)

func buildCatalogSchema(t *testing.T) *catrust.Schema {
	t.Helper()
	s := catrust.NewSchema()
	require.NoError(t, s.AddNode("Order"))
	require.NoError(t, s.AddNode("Customer"))
	require.NoError(t, s.AddAttribute("total", "Order", catrust.SortFloat))
	require.NoError(t, s.AddAttribute("name", "Customer", catrust.SortString))
	require.NoError(t, s.AddForeignKey("customer", "Order", "Customer"))
	return s
}

func buildCatalogInstance(t *testing.T, s *catrust.Schema) *catrust.Instance {
	t.Helper()
	inst := catrust.NewInstance(s)

	alice, err := inst.Insert("Customer", catrust.EntityData{
		Attrs: map[catrust.AttrName]catrust.Value{"name": catrust.StringValue("Alice")},
	})
	require.NoError(t, err)

	bob, err := inst.Insert("Customer", catrust.EntityData{
		Attrs: map[catrust.AttrName]catrust.Value{"name": catrust.StringValue("Bob")},
	})
	require.NoError(t, err)

	_, err = inst.Insert("Order", catrust.EntityData{
		Attrs: map[catrust.AttrName]catrust.Value{"total": catrust.FloatValue(40)},
		FKs:   map[catrust.EdgeName]*catrust.RowId{"customer": &alice},
	})
	require.NoError(t, err)

	_, err = inst.Insert("Order", catrust.EntityData{
		Attrs: map[catrust.AttrName]catrust.Value{"total": catrust.FloatValue(15)},
		FKs:   map[catrust.EdgeName]*catrust.RowId{"customer": &bob},
	})
	require.NoError(t, err)

	return inst
}

func TestEvalQueryFiltersAndProjects(t *testing.T) {
	s := buildCatalogSchema(t)
	inst := buildCatalogInstance(t, s)
	eval := NewEvaluator(catrust.EvaluatorConfig{}, nil)

	q := CqlQuery{
		Name: "big-orders",
		Blocks: []QueryBlock{
			{
				TargetEntity: "Order",
				From:         map[Var]catrust.NodeName{"o": "Order"},
				Where: []WhereClause{
					{Left: VarPath{Var: "o", Attr: "total"}, Op: catrust.OpGt, Value: catrust.FloatValue(20)},
				},
				Select: map[string]VarPath{
					"total":        {Var: "o", Attr: "total"},
					"customerName": {Var: "o", Hops: []catrust.EdgeName{"customer"}, Attr: "name"},
				},
			},
		},
	}

	result, err := eval.EvalQuery(s, inst, q)
	require.NoError(t, err)
	rows := result.Instance.Rows("Order")
	require.Len(t, rows, 1)
	assertSingleValue(t, rows, "customerName", "Alice")
	assert.Equal(t, 2, result.RowsScanned)
	assert.Equal(t, 1, result.RowsReturned)
}

func assertSingleValue(t *testing.T, rows map[catrust.RowId]*catrust.EntityData, attr catrust.AttrName, want string) {
	t.Helper()
	for _, row := range rows {
		assert.Equal(t, want, row.Attrs[attr].Str)
		return
	}
	t.Fatalf("expected at least one row")
}

func TestEvalQueryOptimizedMatchesUnoptimized(t *testing.T) {
	s := buildCatalogSchema(t)
	inst := buildCatalogInstance(t, s)
	eval := NewEvaluator(catrust.EvaluatorConfig{}, nil)
	opt := pathoptimizer.New(catrust.OptimizerConfig{MaxPasses: 100, MaxAnalyzeDepth: 16}, nil)
	rules := opt.AnalyzeSchema(s)

	q := CqlQuery{
		Name: "customer-names",
		Blocks: []QueryBlock{
			{
				TargetEntity: "Order",
				From:         map[Var]catrust.NodeName{"o": "Order"},
				Select: map[string]VarPath{
					"customerName": {Var: "o", Hops: []catrust.EdgeName{"customer"}, Attr: "name"},
				},
			},
		},
	}

	plain, err := eval.EvalQuery(s, inst, q)
	require.NoError(t, err)
	optimized, err := eval.EvalQueryOptimized(s, inst, q, opt, rules)
	require.NoError(t, err)

	assert.ElementsMatch(t, namesOf(plain), namesOf(optimized))
}

func namesOf(r *EvalResult) []string {
	out := make([]string, 0)
	for _, row := range r.Instance.Rows("Order") {
		out = append(out, row.Attrs["customerName"].Str)
	}
	return out
}

func TestAggregateFunctions(t *testing.T) {
	s := buildCatalogSchema(t)
	inst := buildCatalogInstance(t, s)
	eval := NewEvaluator(catrust.EvaluatorConfig{}, nil)

	q := CqlQuery{
		Name: "all-orders",
		Blocks: []QueryBlock{
			{
				TargetEntity: "Order",
				From:         map[Var]catrust.NodeName{"o": "Order"},
				Select:       map[string]VarPath{"total": {Var: "o", Attr: "total"}},
			},
		},
	}
	result, err := eval.EvalQuery(s, inst, q)
	require.NoError(t, err)

	assert.Equal(t, 2, Count(result, "Order"))
	assert.InDelta(t, 55.0, Sum(result, "Order", "total").Float, 1e-9)
	assert.InDelta(t, 15.0, MinVal(result, "Order", "total").Float, 1e-9)
	assert.InDelta(t, 40.0, MaxVal(result, "Order", "total").Float, 1e-9)
}

func TestDistinctReturnsSortedDeduplicatedValues(t *testing.T) {
	s := buildCatalogSchema(t)
	inst := catrust.NewInstance(s)

	for _, total := range []float64{40, 15, 40, 70, 15} {
		_, err := inst.Insert("Order", catrust.EntityData{
			Attrs: map[catrust.AttrName]catrust.Value{"total": catrust.FloatValue(total)},
		})
		require.NoError(t, err)
	}

	eval := NewEvaluator(catrust.EvaluatorConfig{}, nil)
	q := CqlQuery{
		Name: "order-totals",
		Blocks: []QueryBlock{
			{
				TargetEntity: "Order",
				From:         map[Var]catrust.NodeName{"o": "Order"},
				Select:       map[string]VarPath{"total": {Var: "o", Attr: "total"}},
			},
		},
	}
	result, err := eval.EvalQuery(s, inst, q)
	require.NoError(t, err)

	distinct := Distinct(result, "Order", "total")
	require.Len(t, distinct, 3)
	assert.InDelta(t, 15.0, distinct[0].Float, 1e-9)
	assert.InDelta(t, 40.0, distinct[1].Float, 1e-9)
	assert.InDelta(t, 70.0, distinct[2].Float, 1e-9)
}

func TestEvalQueryBuildsFKBindingInResultInstance(t *testing.T) {
	s := buildCatalogSchema(t)
	inst := buildCatalogInstance(t, s)
	eval := NewEvaluator(catrust.EvaluatorConfig{}, nil)

	q := CqlQuery{
		Name: "order-customers",
		Blocks: []QueryBlock{
			{
				TargetEntity: "Order",
				From:         map[Var]catrust.NodeName{"o": "Order"},
				Select:       map[string]VarPath{"total": {Var: "o", Attr: "total"}},
				FKBindings:   map[string]VarPath{"customer": {Var: "o", Hops: []catrust.EdgeName{"customer"}}},
			},
		},
	}

	result, err := eval.EvalQuery(s, inst, q)
	require.NoError(t, err)
	require.True(t, result.ResultSchema.HasNode("Customer"))

	rows := result.Instance.Rows("Order")
	require.Len(t, rows, 2)
	for _, row := range rows {
		target := row.FKs["customer"]
		require.NotNil(t, target)
		custRow, ok := inst.Get("Customer", *target)
		require.True(t, ok)
		assert.NotEmpty(t, custRow.Attrs["name"].Str)
	}
}

func TestEvalQueryRejectsEmptyFromVars(t *testing.T) {
	s := buildCatalogSchema(t)
	inst := buildCatalogInstance(t, s)
	eval := NewEvaluator(catrust.EvaluatorConfig{}, nil)

	_, err := eval.EvalQuery(s, inst, CqlQuery{Name: "empty", Blocks: []QueryBlock{{}}})
	require.Error(t, err)
	ce, ok := err.(*catrust.CatrustError)
	require.True(t, ok)
	assert.Equal(t, catrust.ErrCodeEmptyFromVars, ce.Code)
}

func TestQueryOptimizeRewritesMultiHopBindings(t *testing.T) {
	s := catrust.NewSchema()
	require.NoError(t, s.AddNode("Order"))
	require.NoError(t, s.AddNode("Customer"))
	require.NoError(t, s.AddNode("Address"))
	require.NoError(t, s.AddForeignKey("customer", "Order", "Customer"))
	require.NoError(t, s.AddForeignKey("address", "Customer", "Address"))
	require.NoError(t, s.AddForeignKey("shipTo", "Order", "Address"))
	require.NoError(t, s.AddPathEquation(
		catrust.Path{From: "Order", Hops: []catrust.EdgeName{"customer", "address"}},
		catrust.Path{From: "Order", Hops: []catrust.EdgeName{"shipTo"}},
	))

	q := NewCqlQuery("addresses").AddBlock(QueryBlock{
		TargetEntity: "Order",
		From:         map[Var]catrust.NodeName{"o": "Order"},
		FKBindings: map[string]VarPath{
			"shipTo": {Var: "o", Hops: []catrust.EdgeName{"customer", "address"}},
		},
	})

	opt := pathoptimizer.New(catrust.OptimizerConfig{MaxPasses: 100, MaxAnalyzeDepth: 16}, nil)
	q.Optimize(s, opt)

	rewritten := q.Blocks[0].FKBindings["shipTo"]
	require.Len(t, rewritten.Hops, 1)
	assert.Equal(t, catrust.EdgeName("shipTo"), rewritten.Hops[0])
}
