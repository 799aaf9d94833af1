package catrust

import "fmt"

// ReservedColumnName is rejected everywhere a node or attribute name is
// accepted: it is the column the emitters reserve for a row's RowId.
const ReservedColumnName = "catrust_id"

// NodeName identifies an object of the schema category.
type NodeName string

// EdgeName identifies a foreign-key morphism between two nodes.
type EdgeName string

// AttrName identifies an attribute morphism from a node to a scalar sort.
type AttrName string

// Node is an object of the schema category.
type Node struct {
	Name NodeName
}

// ForeignKey is a morphism From -> To in the schema category.
type ForeignKey struct {
	Name EdgeName
	From NodeName
	To   NodeName
}

// Attribute is a morphism from a node to a Typeside sort.
type Attribute struct {
	Name AttrName
	From NodeName
	Sort Sort
}

// Path is a sequence of foreign-key hops starting at From, optionally
// followed by a terminal Attr. A path with no hops and no Attr is the
// identity path at From. A path with Attr set must have its hops (if any)
// land on Attr.From.
type Path struct {
	From NodeName
	Hops []EdgeName
	Attr AttrName
}

// IsAttributePath reports whether the path terminates in an attribute
// rather than at a node.
func (p Path) IsAttributePath() bool { return p.Attr != "" }

func (p Path) String() string {
	s := string(p.From)
	for _, h := range p.Hops {
		s += "." + string(h)
	}
	if p.Attr != "" {
		s += "." + string(p.Attr)
	}
	return s
}

// PathEquation asserts that Left and Right denote the same morphism on
// every instance of the schema.
type PathEquation struct {
	Left  Path
	Right Path
}

// SchemaFinding is a structural problem reported by validate_schema.
type SchemaFinding = Finding

// Schema is a finite presentation of a category: nodes, foreign-key and
// attribute edges between them, and path equations the category must
// satisfy. It is built incrementally and validated on demand rather than
// on every mutation, matching the teacher's "accumulate, then validate"
// separation between construction and validation.
type Schema struct {
	nodes     map[NodeName]Node
	fks       map[EdgeName]ForeignKey
	attrs     map[AttrName]Attribute
	equations []PathEquation

	nodeOrder []NodeName
	fkOrder   []EdgeName
	attrOrder []AttrName

	Typeside *TypesideRegistry
}

// NewSchema constructs an empty schema with its own typeside registry.
func NewSchema() *Schema {
	return &Schema{
		nodes:    make(map[NodeName]Node),
		fks:      make(map[EdgeName]ForeignKey),
		attrs:    make(map[AttrName]Attribute),
		Typeside: NewTypesideRegistry(),
	}
}

func isReserved(name string) bool { return name == ReservedColumnName }

// AddNode adds a node, or overwrites the stored record if name is already
// present (idempotent on duplicate name; last write wins). Returns a
// structural CatrustError only if name is reserved.
func (s *Schema) AddNode(name NodeName) error {
	if isReserved(string(name)) {
		return NewCatrustError(ErrorTypeStructural, ErrCodeReservedName,
			fmt.Sprintf("node name %q is reserved", name)).WithDetail("node", name)
	}
	if _, exists := s.nodes[name]; !exists {
		s.nodeOrder = append(s.nodeOrder, name)
	}
	s.nodes[name] = Node{Name: name}
	return nil
}

// AddForeignKey adds a foreign-key edge From -> To. Both endpoints must
// already exist; the edge name must be fresh across both fks and attrs.
func (s *Schema) AddForeignKey(name EdgeName, from, to NodeName) error {
	if isReserved(string(name)) {
		return NewCatrustError(ErrorTypeStructural, ErrCodeReservedName,
			fmt.Sprintf("edge name %q is reserved", name)).WithDetail("edge", name)
	}
	if _, exists := s.fks[name]; exists {
		return NewCatrustError(ErrorTypeStructural, ErrCodeDuplicateEdge,
			fmt.Sprintf("foreign key %q already exists", name)).WithDetail("edge", name)
	}
	if _, exists := s.attrs[AttrName(name)]; exists {
		return NewCatrustError(ErrorTypeStructural, ErrCodeDuplicateEdge,
			fmt.Sprintf("edge name %q is already used by an attribute", name)).WithDetail("edge", name)
	}
	if _, ok := s.nodes[from]; !ok {
		return NewCatrustError(ErrorTypeStructural, ErrCodeUnknownNode,
			fmt.Sprintf("foreign key %q references unknown node %q", name, from)).WithDetail("node", from)
	}
	if _, ok := s.nodes[to]; !ok {
		return NewCatrustError(ErrorTypeStructural, ErrCodeUnknownNode,
			fmt.Sprintf("foreign key %q references unknown node %q", name, to)).WithDetail("node", to)
	}
	s.fks[name] = ForeignKey{Name: name, From: from, To: to}
	s.fkOrder = append(s.fkOrder, name)
	return nil
}

// AddAttribute adds an attribute edge From -> Sort.
func (s *Schema) AddAttribute(name AttrName, from NodeName, sort Sort) error {
	if isReserved(string(name)) {
		return NewCatrustError(ErrorTypeStructural, ErrCodeReservedName,
			fmt.Sprintf("attribute name %q is reserved", name)).WithDetail("attribute", name)
	}
	if _, exists := s.attrs[name]; exists {
		return NewCatrustError(ErrorTypeStructural, ErrCodeDuplicateEdge,
			fmt.Sprintf("attribute %q already exists", name)).WithDetail("attribute", name)
	}
	if _, ok := s.nodes[from]; !ok {
		return NewCatrustError(ErrorTypeStructural, ErrCodeUnknownNode,
			fmt.Sprintf("attribute %q references unknown node %q", name, from)).WithDetail("node", from)
	}
	s.attrs[name] = Attribute{Name: name, From: from, Sort: sort}
	s.attrOrder = append(s.attrOrder, name)
	return nil
}

// AddPathEquation records an equation between two paths. Structural
// consistency (shared domain/codomain, known edges) is checked here. No
// cross-equation check is made here or elsewhere: the optimizer orients and
// chains equations into rewrite rules but does not check confluence.
func (s *Schema) AddPathEquation(left, right Path) error {
	if left.From != right.From {
		return NewCatrustError(ErrorTypeStructural, ErrCodePathEquationFailed,
			"path equation sides start at different nodes").
			WithDetail("left", left.String()).WithDetail("right", right.String())
	}
	leftEnd, err := s.endpointOf(left)
	if err != nil {
		return err
	}
	rightEnd, err := s.endpointOf(right)
	if err != nil {
		return err
	}
	if leftEnd != rightEnd {
		return NewCatrustError(ErrorTypeStructural, ErrCodePathEquationFailed,
			"path equation sides end at different nodes").
			WithDetail("left", left.String()).WithDetail("right", right.String())
	}
	s.equations = append(s.equations, PathEquation{Left: left, Right: right})
	return nil
}

// endpointOf walks path's hops through known foreign keys and returns the
// node the path lands on (the attribute's domain node, for an attribute
// path). Every hop must be a known foreign key leaving the node reached so
// far, and a terminal attribute must be known and leave the node the hops
// land on.
func (s *Schema) endpointOf(p Path) (NodeName, error) {
	if _, ok := s.nodes[p.From]; !ok {
		return "", NewCatrustError(ErrorTypeStructural, ErrCodeUnknownNode,
			fmt.Sprintf("path starts at unknown node %q", p.From)).WithDetail("node", p.From)
	}
	cur := p.From
	for _, hop := range p.Hops {
		fk, ok := s.fks[hop]
		if !ok {
			return "", NewCatrustError(ErrorTypeStructural, ErrCodeUnknownEdge,
				fmt.Sprintf("path uses unknown foreign key %q", hop)).WithDetail("edge", hop)
		}
		if fk.From != cur {
			return "", NewCatrustError(ErrorTypeStructural, ErrCodeMissingHop,
				fmt.Sprintf("foreign key %q does not originate at %q", hop, cur)).
				WithDetail("edge", hop).WithDetail("node", cur)
		}
		cur = fk.To
	}
	if p.Attr != "" {
		attr, ok := s.attrs[p.Attr]
		if !ok {
			return "", NewCatrustError(ErrorTypeStructural, ErrCodeUnknownEdge,
				fmt.Sprintf("path uses unknown attribute %q", p.Attr)).WithDetail("attribute", p.Attr)
		}
		if attr.From != cur {
			return "", NewCatrustError(ErrorTypeStructural, ErrCodeMissingHop,
				fmt.Sprintf("attribute %q does not originate at %q", p.Attr, cur)).
				WithDetail("attribute", p.Attr).WithDetail("node", cur)
		}
		return cur, nil
	}
	return cur, nil
}

// EdgesFrom returns the foreign keys whose domain is node, in declaration
// order.
func (s *Schema) EdgesFrom(node NodeName) []ForeignKey {
	var out []ForeignKey
	for _, name := range s.fkOrder {
		fk := s.fks[name]
		if fk.From == node {
			out = append(out, fk)
		}
	}
	return out
}

// ForeignKeysTargeting returns the foreign keys whose codomain is node, in
// declaration order.
func (s *Schema) ForeignKeysTargeting(node NodeName) []ForeignKey {
	var out []ForeignKey
	for _, name := range s.fkOrder {
		fk := s.fks[name]
		if fk.To == node {
			out = append(out, fk)
		}
	}
	return out
}

// AttributesOf returns the attributes whose domain is node, in declaration
// order.
func (s *Schema) AttributesOf(node NodeName) []Attribute {
	var out []Attribute
	for _, name := range s.attrOrder {
		a := s.attrs[name]
		if a.From == node {
			out = append(out, a)
		}
	}
	return out
}

// ForeignKeys returns every foreign key in declaration order.
func (s *Schema) ForeignKeys() []ForeignKey {
	out := make([]ForeignKey, 0, len(s.fkOrder))
	for _, name := range s.fkOrder {
		out = append(out, s.fks[name])
	}
	return out
}

// Attributes returns every attribute in declaration order.
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, 0, len(s.attrOrder))
	for _, name := range s.attrOrder {
		out = append(out, s.attrs[name])
	}
	return out
}

// Nodes returns every node in declaration order.
func (s *Schema) Nodes() []Node {
	out := make([]Node, 0, len(s.nodeOrder))
	for _, name := range s.nodeOrder {
		out = append(out, s.nodes[name])
	}
	return out
}

// PathEquations returns the recorded path equations in declaration order.
func (s *Schema) PathEquations() []PathEquation {
	return append([]PathEquation(nil), s.equations...)
}

// Node looks up a node by name.
func (s *Schema) Node(name NodeName) (Node, bool) { n, ok := s.nodes[name]; return n, ok }

// ForeignKey looks up a foreign key by name.
func (s *Schema) ForeignKey(name EdgeName) (ForeignKey, bool) { fk, ok := s.fks[name]; return fk, ok }

// Attribute looks up an attribute by name.
func (s *Schema) Attribute(name AttrName) (Attribute, bool) { a, ok := s.attrs[name]; return a, ok }

// HasNode reports whether name is a known node.
func (s *Schema) HasNode(name NodeName) bool { _, ok := s.nodes[name]; return ok }

// ValidateSchema accumulates every structural problem found in the schema
// rather than stopping at the first, per the engine's accumulated-findings
// validation policy. A schema with no findings is safe to build an Instance
// against.
func (s *Schema) ValidateSchema() []SchemaFinding {
	var findings []SchemaFinding

	for _, name := range s.fkOrder {
		fk := s.fks[name]
		if !s.HasNode(fk.From) {
			findings = append(findings, newFinding(ErrCodeUnknownNode,
				fmt.Sprintf("foreign key %q has unknown domain node %q", fk.Name, fk.From),
				map[string]any{"edge": fk.Name, "node": fk.From}))
		}
		if !s.HasNode(fk.To) {
			findings = append(findings, newFinding(ErrCodeUnknownNode,
				fmt.Sprintf("foreign key %q has unknown codomain node %q", fk.Name, fk.To),
				map[string]any{"edge": fk.Name, "node": fk.To}))
		}
	}

	for _, name := range s.attrOrder {
		a := s.attrs[name]
		if !s.HasNode(a.From) {
			findings = append(findings, newFinding(ErrCodeUnknownNode,
				fmt.Sprintf("attribute %q has unknown domain node %q", a.Name, a.From),
				map[string]any{"attribute": a.Name, "node": a.From}))
		}
	}

	for i, eq := range s.equations {
		if _, err := s.endpointOf(eq.Left); err != nil {
			findings = append(findings, newFinding(ErrCodePathEquationFailed,
				fmt.Sprintf("path equation %d left side invalid: %v", i, err),
				map[string]any{"equation": i, "side": "left"}))
		}
		if _, err := s.endpointOf(eq.Right); err != nil {
			findings = append(findings, newFinding(ErrCodePathEquationFailed,
				fmt.Sprintf("path equation %d right side invalid: %v", i, err),
				map[string]any{"equation": i, "side": "right"}))
		}
	}

	return findings
}
