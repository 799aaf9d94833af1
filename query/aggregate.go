package query

import (
	"sort"

	"github.com/lychee-technology/catrust"
)

// Count returns the number of rows of entity in result's result instance.
// A convenience function, not part of the query language itself — the spec
// treats aggregation as something callers do to an EvalResult, not a
// SELECT-clause feature.
func Count(result *EvalResult, entity catrust.NodeName) int {
	return len(result.Instance.Rows(entity))
}

// Sum adds together every non-null Int/Float value of attr on entity,
// promoting Int to Float as Compare does. Returns a Float value; an
// all-null or empty column sums to zero.
func Sum(result *EvalResult, entity catrust.NodeName, attr catrust.AttrName) catrust.Value {
	var total float64
	for _, v := range result.Column(entity, attr) {
		switch v.Sort {
		case catrust.SortInt:
			total += float64(v.Int)
		case catrust.SortFloat:
			total += v.Float
		}
	}
	return catrust.FloatValue(total)
}

// MinVal returns the smallest non-null value of attr on entity under
// Compare's ordering, or Null if every value is null or entity/attr is
// absent.
func MinVal(result *EvalResult, entity catrust.NodeName, attr catrust.AttrName) catrust.Value {
	return extreme(result, entity, attr, catrust.OpLt)
}

// MaxVal returns the largest non-null value of attr on entity under
// Compare's ordering, or Null if every value is null or entity/attr is
// absent.
func MaxVal(result *EvalResult, entity catrust.NodeName, attr catrust.AttrName) catrust.Value {
	return extreme(result, entity, attr, catrust.OpGt)
}

func extreme(result *EvalResult, entity catrust.NodeName, attr catrust.AttrName, keepIf catrust.CompareOp) catrust.Value {
	best := catrust.NullValue()
	for _, v := range result.Column(entity, attr) {
		if best.IsNull() || catrust.Compare(v, keepIf, best) {
			best = v
		}
	}
	return best
}

// Distinct returns the distinct non-null values of attr on entity, sorted
// ascending under Compare's ordering.
func Distinct(result *EvalResult, entity catrust.NodeName, attr catrust.AttrName) []catrust.Value {
	var out []catrust.Value
	for _, v := range result.Column(entity, attr) {
		dup := false
		for _, s := range out {
			if catrust.Compare(v, catrust.OpEq, s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return catrust.Compare(out[i], catrust.OpLt, out[j]) })
	return out
}
