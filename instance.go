package catrust

import "fmt"

// RowId is an opaque per-entity identifier, unique within a single node's
// table of a single Instance. It carries no meaning across instances or
// nodes.
type RowId uint64

// EntityData is one row: its attribute values and its foreign-key targets.
// A foreign key absent from FKs, or present with a nil pointer, means null
// — the row has no outgoing edge along that foreign key.
type EntityData struct {
	Attrs map[AttrName]Value
	FKs   map[EdgeName]*RowId
}

func newEntityData() EntityData {
	return EntityData{Attrs: make(map[AttrName]Value), FKs: make(map[EdgeName]*RowId)}
}

// InstanceFinding is a semantic problem reported by validate_instance.
type InstanceFinding = Finding

// Instance is a functor from a Schema to Set: one row table per node,
// populated by Insert/InsertWithID and queried by FollowPath.
type Instance struct {
	Schema *Schema
	tables map[NodeName]map[RowId]*EntityData
	nextID map[NodeName]RowId
}

// NewInstance constructs an empty instance of schema.
func NewInstance(schema *Schema) *Instance {
	inst := &Instance{
		Schema: schema,
		tables: make(map[NodeName]map[RowId]*EntityData),
		nextID: make(map[NodeName]RowId),
	}
	for _, n := range schema.Nodes() {
		inst.tables[n.Name] = make(map[RowId]*EntityData)
	}
	return inst
}

// Insert adds a row to node's table under a freshly minted RowId.
func (i *Instance) Insert(node NodeName, data EntityData) (RowId, error) {
	if !i.Schema.HasNode(node) {
		return 0, NewCatrustError(ErrorTypeStructural, ErrCodeUnknownNode,
			fmt.Sprintf("insert into unknown node %q", node)).WithDetail("node", node)
	}
	i.nextID[node]++
	id := i.nextID[node]
	if err := i.InsertWithID(node, id, data); err != nil {
		return 0, err
	}
	return id, nil
}

// InsertWithID adds a row under a caller-chosen RowId, failing if that id
// is already occupied in node's table. Used by Δ, which preserves RowIds
// across instances; Σ mints fresh ids through Insert.
func (i *Instance) InsertWithID(node NodeName, id RowId, data EntityData) error {
	if !i.Schema.HasNode(node) {
		return NewCatrustError(ErrorTypeStructural, ErrCodeUnknownNode,
			fmt.Sprintf("insert into unknown node %q", node)).WithDetail("node", node)
	}
	table := i.tables[node]
	if table == nil {
		table = make(map[RowId]*EntityData)
		i.tables[node] = table
	}
	if _, exists := table[id]; exists {
		return NewCatrustError(ErrorTypeStructural, ErrCodeDuplicateEdge,
			fmt.Sprintf("row %d already exists in node %q", id, node)).
			WithDetail("node", node).WithDetail("row", id)
	}
	row := newEntityData()
	for k, v := range data.Attrs {
		row.Attrs[k] = v
	}
	for k, v := range data.FKs {
		row.FKs[k] = v
	}
	table[id] = &row
	if id > i.nextID[node] {
		i.nextID[node] = id
	}
	return nil
}

// Get returns the row at (node, id), if present.
func (i *Instance) Get(node NodeName, id RowId) (*EntityData, bool) {
	row, ok := i.tables[node][id]
	return row, ok
}

// Rows returns every (RowId, row) pair for node. The returned map is owned
// by the instance; callers must not mutate it.
func (i *Instance) Rows(node NodeName) map[RowId]*EntityData {
	return i.tables[node]
}

// PathValue is the result of FollowPath: either a terminal Value (when the
// path ends in an attribute) or a terminal (Node, Row) pair (when the path
// ends at a node), or Null when any hop along the way is a null foreign
// key.
type PathValue struct {
	IsNull bool
	IsAttr bool
	Value  Value
	Node   NodeName
	Row    RowId
}

func nullPathValue() PathValue { return PathValue{IsNull: true} }

// FollowPath walks path starting from row (node, id). A null foreign key
// anywhere along the hops short-circuits to a Null result (matching the
// Typeside's Null-propagation rule, P8), rather than an error: missing data
// is an ordinary runtime outcome, not a structural problem. An unknown
// node, row, edge, or a path whose declared From does not match node is an
// evaluation-type CatrustError.
func (i *Instance) FollowPath(node NodeName, id RowId, path Path) (PathValue, error) {
	if path.From != node {
		return PathValue{}, NewCatrustError(ErrorTypeEvaluation, ErrCodeMissingHop,
			fmt.Sprintf("path starts at %q, not %q", path.From, node)).
			WithDetail("path", path.String()).WithDetail("node", node)
	}

	row, ok := i.Get(node, id)
	if !ok {
		return PathValue{}, NewCatrustError(ErrorTypeEvaluation, ErrCodeUnknownNode,
			fmt.Sprintf("no row %d in node %q", id, node)).WithDetail("node", node).WithDetail("row", id)
	}

	curNode, curID := node, id
	for _, hop := range path.Hops {
		fk, ok := i.Schema.ForeignKey(hop)
		if !ok {
			return PathValue{}, NewCatrustError(ErrorTypeEvaluation, ErrCodeUnknownEdge,
				fmt.Sprintf("unknown foreign key %q", hop)).WithDetail("edge", hop)
		}
		target := row.FKs[hop]
		if target == nil {
			return nullPathValue(), nil
		}
		curNode, curID = fk.To, *target
		row, ok = i.Get(curNode, curID)
		if !ok {
			return PathValue{}, NewCatrustError(ErrorTypeEvaluation, ErrCodeBrokenFK,
				fmt.Sprintf("foreign key %q points to missing row %d in %q", hop, curID, curNode)).
				WithDetail("edge", hop).WithDetail("node", curNode).WithDetail("row", curID)
		}
	}

	if path.Attr == "" {
		return PathValue{Node: curNode, Row: curID}, nil
	}

	attr, ok := i.Schema.Attribute(path.Attr)
	if !ok {
		return PathValue{}, NewCatrustError(ErrorTypeEvaluation, ErrCodeUnknownEdge,
			fmt.Sprintf("unknown attribute %q", path.Attr)).WithDetail("attribute", path.Attr)
	}
	val, ok := row.Attrs[attr.Name]
	if !ok {
		return nullPathValue(), nil
	}
	return PathValue{IsAttr: true, Value: val}, nil
}

// ValidateInstance accumulates every semantic violation of the instance
// against its schema:
//
//	I1 — every row of a node must have an assignment for each of that
//	     node's foreign keys, and every non-null assignment must reference
//	     an existing row of the target node (missing assignment and
//	     dangling target are both flagged).
//	I2 — every attribute value's Sort must match the attribute's declared
//	     Sort (Null is always allowed).
//	I3 — every path equation must hold for every row in its domain node.
func (i *Instance) ValidateInstance() []InstanceFinding {
	var findings []InstanceFinding

	for _, node := range i.Schema.Nodes() {
		for id, row := range i.tables[node.Name] {
			for _, fk := range i.Schema.EdgesFrom(node.Name) {
				target := row.FKs[fk.Name]
				if target == nil {
					findings = append(findings, newFinding(ErrCodeMissingFK,
						fmt.Sprintf("row %d in %q: foreign key %q has no assignment",
							id, node.Name, fk.Name),
						map[string]any{"node": node.Name, "row": id, "edge": fk.Name}))
					continue
				}
				if _, ok := i.Get(fk.To, *target); !ok {
					findings = append(findings, newFinding(ErrCodeBrokenFK,
						fmt.Sprintf("row %d in %q: foreign key %q points to missing row %d in %q",
							id, node.Name, fk.Name, *target, fk.To),
						map[string]any{"node": node.Name, "row": id, "edge": fk.Name}))
				}
			}
			for _, attr := range i.Schema.AttributesOf(node.Name) {
				val, ok := row.Attrs[attr.Name]
				if !ok || val.IsNull() {
					continue
				}
				if val.Sort != attr.Sort {
					findings = append(findings, newFinding(ErrCodeKindMismatch,
						fmt.Sprintf("row %d in %q: attribute %q has sort %q, expected %q",
							id, node.Name, attr.Name, val.Sort, attr.Sort),
						map[string]any{"node": node.Name, "row": id, "attribute": attr.Name}))
				}
			}
		}
	}

	for eqIdx, eq := range i.Schema.PathEquations() {
		for id := range i.tables[eq.Left.From] {
			left, err := i.FollowPath(eq.Left.From, id, eq.Left)
			if err != nil {
				continue
			}
			right, err := i.FollowPath(eq.Right.From, id, eq.Right)
			if err != nil {
				continue
			}
			if !pathValuesEqual(left, right) {
				findings = append(findings, newFinding(ErrCodePathEquationFailed,
					fmt.Sprintf("row %d in %q: path equation %d (%s = %s) does not hold",
						id, eq.Left.From, eqIdx, eq.Left.String(), eq.Right.String()),
					map[string]any{"node": eq.Left.From, "row": id, "equation": eqIdx}))
			}
		}
	}

	return findings
}

func pathValuesEqual(a, b PathValue) bool {
	if a.IsNull != b.IsNull {
		return false
	}
	if a.IsNull {
		return true
	}
	if a.IsAttr != b.IsAttr {
		return false
	}
	if a.IsAttr {
		return Compare(a.Value, OpEq, b.Value)
	}
	return a.Node == b.Node && a.Row == b.Row
}
