// Package migrate implements the two data-migration functors of the
// engine: Delta (pullback, "restriction of scalars") and Sigma (left Kan
// extension, "extension of scalars"). Both consume a Mapping between two
// schemas and an Instance of one side, and produce an Instance of the
// other side plus a side-channel of MigrationNotes recording anything the
// migration could not carry over rather than silently dropping it —
// generalizing the teacher's BatchResult{Successful, Failed} split-result
// convention to "one successful instance, plus notes" instead of a
// partitioned result set.
package migrate

import (
	"fmt"

	"github.com/lychee-technology/catrust"
)

// MigrationNote records one field, hop, or row this migration could not
// populate: an unmapped schema item, a Sigma image path of a shape Sigma
// does not carry (see Sigma's doc comment), or a broken foreign key
// encountered while following a path.
type MigrationNote struct {
	Code    string
	Message string
}

func note(code, format string, args ...any) MigrationNote {
	return MigrationNote{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (n MigrationNote) String() string {
	return fmt.Sprintf("[%s] %s", n.Code, n.Message)
}

const (
	NoteUnmappedNode     = "UNMAPPED_NODE"
	NoteUnmappedEdge     = "UNMAPPED_EDGE"
	NoteFollowFailed     = "FOLLOW_FAILED"
	NoteUnsupportedImage = "UNSUPPORTED_IMAGE_SHAPE"
)

// Delta computes the pullback of targetInstance (an instance of
// mapping.Target) along mapping, producing an instance of mapping.Source.
// For each source node the image instance's rows are reused under the same
// RowId; each source foreign key/attribute value is obtained by following
// its image path in targetInstance. A null anywhere along an image path
// yields a null result (consistent with FollowPath's Null-propagation, not
// a note), while an unmapped schema item or a broken path produces a note
// and omits the field — never a fabricated value.
func Delta(mapping *catrust.Mapping, targetInstance *catrust.Instance) (*catrust.Instance, []MigrationNote) {
	result := catrust.NewInstance(mapping.Source)
	var notes []MigrationNote

	for _, n := range mapping.Source.Nodes() {
		img, ok := mapping.NodeImage(n.Name)
		if !ok {
			notes = append(notes, note(NoteUnmappedNode, "node %q has no image; no rows produced", n.Name))
			continue
		}

		for id := range targetInstance.Rows(img) {
			data := catrust.EntityData{
				Attrs: make(map[catrust.AttrName]catrust.Value),
				FKs:   make(map[catrust.EdgeName]*catrust.RowId),
			}

			for _, fk := range mapping.Source.EdgesFrom(n.Name) {
				path, ok := mapping.FKImage(fk.Name)
				if !ok {
					notes = append(notes, note(NoteUnmappedEdge, "foreign key %q has no image; omitted on row %d", fk.Name, id))
					continue
				}
				pv, err := targetInstance.FollowPath(img, id, path)
				if err != nil {
					notes = append(notes, note(NoteFollowFailed, "row %d: following image of %q failed: %v", id, fk.Name, err))
					continue
				}
				if pv.IsNull {
					continue
				}
				rid := pv.Row
				data.FKs[fk.Name] = &rid
			}

			for _, attr := range mapping.Source.AttributesOf(n.Name) {
				path, ok := mapping.AttrImage(attr.Name)
				if !ok {
					notes = append(notes, note(NoteUnmappedEdge, "attribute %q has no image; omitted on row %d", attr.Name, id))
					continue
				}
				pv, err := targetInstance.FollowPath(img, id, path)
				if err != nil {
					notes = append(notes, note(NoteFollowFailed, "row %d: following image of %q failed: %v", id, attr.Name, err))
					continue
				}
				if pv.IsNull {
					continue
				}
				data.Attrs[attr.Name] = pv.Value
			}

			if err := result.InsertWithID(n.Name, id, data); err != nil {
				notes = append(notes, note(NoteFollowFailed, "row %d in %q: %v", id, n.Name, err))
			}
		}
	}

	return result, notes
}

// Sigma computes the left Kan extension of sourceInstance along mapping,
// producing an instance of mapping.Target. Every source row is carried to
// the target node its node maps to, under a freshly minted RowId — rows
// from distinct source nodes that map to the same target node are NOT
// quotiented/identified with each other (the open question documented
// alongside this package: general Sigma requires quotienting rows forced
// equal by the mapping's composition, which this implementation does not
// attempt). An attribute is carried only when its image path has no
// foreign-key hops, and a foreign key only when its image path is exactly
// one hop (a direct rename); any other image shape, including a zero-hop
// foreign-key image, is recorded as an unsupported-shape note and the field
// is omitted rather than guessed at.
func Sigma(mapping *catrust.Mapping, sourceInstance *catrust.Instance) (*catrust.Instance, []MigrationNote) {
	result := catrust.NewInstance(mapping.Target)
	var notes []MigrationNote

	// translate[srcNode][srcRowId] = newRowId in the target node that
	// source node's image lands on.
	translate := make(map[catrust.NodeName]map[catrust.RowId]catrust.RowId)

	for _, n := range mapping.Source.Nodes() {
		img, ok := mapping.NodeImage(n.Name)
		if !ok {
			notes = append(notes, note(NoteUnmappedNode, "node %q has no image; its rows are dropped", n.Name))
			continue
		}
		translate[n.Name] = make(map[catrust.RowId]catrust.RowId)
		for id, row := range sourceInstance.Rows(n.Name) {
			_ = row
			data := catrust.EntityData{
				Attrs: make(map[catrust.AttrName]catrust.Value),
				FKs:   make(map[catrust.EdgeName]*catrust.RowId),
			}
			newID, err := result.Insert(img, data)
			if err != nil {
				notes = append(notes, note(NoteFollowFailed, "row %d in %q: %v", id, n.Name, err))
				continue
			}
			translate[n.Name][id] = newID
		}
	}

	for _, n := range mapping.Source.Nodes() {
		img, ok := mapping.NodeImage(n.Name)
		if !ok {
			continue
		}
		for id, row := range sourceInstance.Rows(n.Name) {
			newID, ok := translate[n.Name][id]
			if !ok {
				continue
			}
			target, ok := result.Get(img, newID)
			if !ok {
				continue
			}

			for _, attr := range mapping.Source.AttributesOf(n.Name) {
				path, ok := mapping.AttrImage(attr.Name)
				if !ok {
					notes = append(notes, note(NoteUnmappedEdge, "attribute %q has no image; omitted on row %d", attr.Name, id))
					continue
				}
				if len(path.Hops) > 0 {
					notes = append(notes, note(NoteUnsupportedImage,
						"attribute %q's image path has %d foreign-key hops; only direct renames are supported, omitted on row %d",
						attr.Name, len(path.Hops), id))
					continue
				}
				val, ok := row.Attrs[attr.Name]
				if !ok || val.IsNull() {
					continue
				}
				target.Attrs[path.Attr] = val
			}

			for _, fk := range mapping.Source.EdgesFrom(n.Name) {
				path, ok := mapping.FKImage(fk.Name)
				if !ok {
					notes = append(notes, note(NoteUnmappedEdge, "foreign key %q has no image; omitted on row %d", fk.Name, id))
					continue
				}
				if len(path.Hops) != 1 {
					notes = append(notes, note(NoteUnsupportedImage,
						"foreign key %q's image path has %d hops; only single-hop images are supported, omitted on row %d",
						fk.Name, len(path.Hops), id))
					continue
				}
				srcTarget := row.FKs[fk.Name]
				if srcTarget == nil {
					continue
				}
				srcFK, ok := mapping.Source.ForeignKey(fk.Name)
				if !ok {
					continue
				}
				if _, ok := mapping.NodeImage(srcFK.To); !ok {
					notes = append(notes, note(NoteUnmappedNode, "foreign key %q's target node %q has no image; omitted on row %d", fk.Name, srcFK.To, id))
					continue
				}
				destID, ok := translate[srcFK.To][*srcTarget]
				if !ok {
					notes = append(notes, note(NoteFollowFailed, "foreign key %q: target row %d in %q was not migrated; omitted on row %d", fk.Name, *srcTarget, srcFK.To, id))
					continue
				}
				target.FKs[path.Hops[0]] = &destID
			}
		}
	}

	return result, notes
}
