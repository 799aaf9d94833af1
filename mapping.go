package catrust

import "fmt"

// EdgeMapping records where a source foreign key's image lands: either
// straight onto a target foreign key of the same name, or generalized onto
// an arbitrary path through the target schema (FkToPath).
type EdgeMapping struct {
	Source EdgeName
	Target Path
}

// AttrMapping records where a source attribute's image lands: a path
// through the target schema terminating in a target attribute (AttrToPath).
type AttrMapping struct {
	Source AttrName
	Target Path
}

// Mapping is a functor Source -> Target between two schemas: every source
// node maps to a target node, every source foreign key maps to a path of
// the target schema, and every source attribute maps to a path of the
// target schema terminating in an attribute.
type Mapping struct {
	Source *Schema
	Target *Schema

	nodeMap map[NodeName]NodeName
	fkMap   map[EdgeName]Path
	attrMap map[AttrName]Path
}

// NewMapping constructs an empty functor from source to target.
func NewMapping(source, target *Schema) *Mapping {
	return &Mapping{
		Source:  source,
		Target:  target,
		nodeMap: make(map[NodeName]NodeName),
		fkMap:   make(map[EdgeName]Path),
		attrMap: make(map[AttrName]Path),
	}
}

// MapNode sends source node src to target node tgt.
func (m *Mapping) MapNode(src, tgt NodeName) error {
	if !m.Source.HasNode(src) {
		return NewCatrustError(ErrorTypeComposition, ErrCodeUnknownNode,
			fmt.Sprintf("source node %q is unknown", src)).WithDetail("node", src)
	}
	if !m.Target.HasNode(tgt) {
		return NewCatrustError(ErrorTypeComposition, ErrCodeUnknownNode,
			fmt.Sprintf("target node %q is unknown", tgt)).WithDetail("node", tgt)
	}
	m.nodeMap[src] = tgt
	return nil
}

// MapFK sends source foreign key src to the path targetPath through the
// target schema (FkToPath). targetPath must not terminate in an attribute.
// When src's domain node has already been mapped, targetPath's domain must
// be that image; before the node is mapped the domain is not checked.
func (m *Mapping) MapFK(src EdgeName, targetPath Path) error {
	fk, ok := m.Source.ForeignKey(src)
	if !ok {
		return NewCatrustError(ErrorTypeComposition, ErrCodeUnknownEdge,
			fmt.Sprintf("source foreign key %q is unknown", src)).WithDetail("edge", src)
	}
	if targetPath.IsAttributePath() {
		return NewCatrustError(ErrorTypeComposition, ErrCodeKindMismatch,
			fmt.Sprintf("foreign key %q cannot map to an attribute-terminated path", src)).
			WithDetail("edge", src)
	}
	image, ok := m.nodeMap[fk.From]
	if ok && targetPath.From != image {
		return NewCatrustError(ErrorTypeComposition, ErrCodeIncompatibleSchema,
			fmt.Sprintf("foreign key %q's image path starts at %q, expected the image of %q (%q)",
				src, targetPath.From, fk.From, image)).WithDetail("edge", src)
	}
	m.fkMap[src] = targetPath
	return nil
}

// MapAttr sends source attribute src to the path targetPath through the
// target schema (AttrToPath). targetPath must terminate in an attribute.
func (m *Mapping) MapAttr(src AttrName, targetPath Path) error {
	attr, ok := m.Source.Attribute(src)
	if !ok {
		return NewCatrustError(ErrorTypeComposition, ErrCodeUnknownEdge,
			fmt.Sprintf("source attribute %q is unknown", src)).WithDetail("attribute", src)
	}
	if !targetPath.IsAttributePath() {
		return NewCatrustError(ErrorTypeComposition, ErrCodeKindMismatch,
			fmt.Sprintf("attribute %q must map to a path terminating in an attribute", src)).
			WithDetail("attribute", src)
	}
	image, ok := m.nodeMap[attr.From]
	if ok && targetPath.From != image {
		return NewCatrustError(ErrorTypeComposition, ErrCodeIncompatibleSchema,
			fmt.Sprintf("attribute %q's image path starts at %q, expected the image of %q (%q)",
				src, targetPath.From, attr.From, image)).WithDetail("attribute", src)
	}
	m.attrMap[src] = targetPath
	return nil
}

// MapAttrDirect is the common case of MapAttr where the image path is a
// single target attribute with no foreign-key hops.
func (m *Mapping) MapAttrDirect(src AttrName, tgt AttrName) error {
	targetAttr, ok := m.Target.Attribute(tgt)
	if !ok {
		return NewCatrustError(ErrorTypeComposition, ErrCodeUnknownEdge,
			fmt.Sprintf("target attribute %q is unknown", tgt)).WithDetail("attribute", tgt)
	}
	return m.MapAttr(src, Path{From: targetAttr.From, Attr: tgt})
}

// NodeImage returns the target node src maps to.
func (m *Mapping) NodeImage(src NodeName) (NodeName, bool) { n, ok := m.nodeMap[src]; return n, ok }

// FKImage returns the target path src maps to.
func (m *Mapping) FKImage(src EdgeName) (Path, bool) { p, ok := m.fkMap[src]; return p, ok }

// AttrImage returns the target path src maps to.
func (m *Mapping) AttrImage(src AttrName) (Path, bool) { p, ok := m.attrMap[src]; return p, ok }

// IsComplete reports whether every node, foreign key, and attribute of the
// source schema has an image under this mapping.
func (m *Mapping) IsComplete() bool {
	for _, n := range m.Source.Nodes() {
		if _, ok := m.nodeMap[n.Name]; !ok {
			return false
		}
	}
	for _, fk := range m.Source.ForeignKeys() {
		if _, ok := m.fkMap[fk.Name]; !ok {
			return false
		}
	}
	for _, a := range m.Source.Attributes() {
		if _, ok := m.attrMap[a.Name]; !ok {
			return false
		}
	}
	return true
}

// Validate accumulates composition findings: unmapped source items, image
// paths that do not type-check against the target schema, and source path
// equations whose images do not hold as equations of the target schema.
func (m *Mapping) Validate() []Finding {
	var findings []Finding

	for _, n := range m.Source.Nodes() {
		if _, ok := m.nodeMap[n.Name]; !ok {
			findings = append(findings, newFinding(ErrCodeMissingFK,
				fmt.Sprintf("node %q has no image", n.Name), map[string]any{"node": n.Name}))
		}
	}
	for _, fk := range m.Source.ForeignKeys() {
		path, ok := m.fkMap[fk.Name]
		if !ok {
			findings = append(findings, newFinding(ErrCodeMissingFK,
				fmt.Sprintf("foreign key %q has no image", fk.Name), map[string]any{"edge": fk.Name}))
			continue
		}
		if _, err := m.Target.endpointOf(path); err != nil {
			findings = append(findings, newFinding(ErrCodeMissingImageEdge,
				fmt.Sprintf("foreign key %q's image path %q is invalid in the target schema: %v",
					fk.Name, path.String(), err), map[string]any{"edge": fk.Name}))
		}
	}
	for _, a := range m.Source.Attributes() {
		path, ok := m.attrMap[a.Name]
		if !ok {
			findings = append(findings, newFinding(ErrCodeMissingFK,
				fmt.Sprintf("attribute %q has no image", a.Name), map[string]any{"attribute": a.Name}))
			continue
		}
		if _, err := m.Target.endpointOf(path); err != nil {
			findings = append(findings, newFinding(ErrCodeMissingImageEdge,
				fmt.Sprintf("attribute %q's image path %q is invalid in the target schema: %v",
					a.Name, path.String(), err), map[string]any{"attribute": a.Name}))
		}
	}

	for i, eq := range m.Source.PathEquations() {
		leftImg, leftErr := m.imagePath(eq.Left)
		rightImg, rightErr := m.imagePath(eq.Right)
		if leftErr != nil || rightErr != nil {
			continue
		}
		if !m.Target.pathEquationHolds(leftImg, rightImg) {
			findings = append(findings, newFinding(ErrCodePathEquationFailed,
				fmt.Sprintf("source path equation %d does not hold under this mapping's images", i),
				map[string]any{"equation": i}))
		}
	}

	return findings
}

// ImagePath composes source-schema path p through this mapping's per-edge
// images, concatenating target paths hop by hop. Exported so that a
// mapping-composition pass (see internal/pathoptimizer) can build the image
// of one mapping's path under a second mapping without reaching into
// unexported state.
func (m *Mapping) ImagePath(p Path) (Path, error) { return m.imagePath(p) }

// imagePath composes a source path's hops/attribute through the mapping's
// per-edge images, concatenating target paths hop by hop.
func (m *Mapping) imagePath(p Path) (Path, error) {
	startNode, ok := m.nodeMap[p.From]
	if !ok {
		return Path{}, NewCatrustError(ErrorTypeComposition, ErrCodeUnknownNode,
			fmt.Sprintf("node %q has no image", p.From))
	}
	out := Path{From: startNode}
	for _, hop := range p.Hops {
		img, ok := m.fkMap[hop]
		if !ok {
			return Path{}, NewCatrustError(ErrorTypeComposition, ErrCodeMissingFK,
				fmt.Sprintf("foreign key %q has no image", hop))
		}
		out.Hops = append(out.Hops, img.Hops...)
	}
	if p.Attr != "" {
		img, ok := m.attrMap[p.Attr]
		if !ok {
			return Path{}, NewCatrustError(ErrorTypeComposition, ErrCodeMissingFK,
				fmt.Sprintf("attribute %q has no image", p.Attr))
		}
		out.Hops = append(out.Hops, img.Hops...)
		out.Attr = img.Attr
	}
	return out, nil
}

// pathEquationHolds reports whether two target-schema paths have the same
// endpoint, a necessary (and, given this package's non-quotiented
// semantics, sufficient) condition for treating them as equal images.
func (s *Schema) pathEquationHolds(left, right Path) bool {
	leftEnd, err := s.endpointOf(left)
	if err != nil {
		return false
	}
	rightEnd, err := s.endpointOf(right)
	if err != nil {
		return false
	}
	if left.Attr != "" || right.Attr != "" {
		return left.Attr == right.Attr && leftEnd == rightEnd
	}
	return leftEnd == rightEnd
}
