package catrust

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// relationExtension is the "x-relation" value catrust attaches, next to
// "type": "integer", to the property rendered for each outgoing foreign
// key (attribute properties carry only a scalar type), generalizing
// the teacher's PropertySchema.Relation/RelationSchema convention from
// JSON-Schema-with-relations to category-with-relations: it names the
// target node and the foreign key edge that reaches it, so a consumer can
// recover FK structure from the rendered schema even though a node's JSON
// Schema object only has scalar properties otherwise.
type relationExtension struct {
	Edge   string `json:"edge"`
	Target string `json:"target"`
}

func sortToJSONType(s Sort) string {
	switch s {
	case SortString, SortCustom:
		return "string"
	case SortInt:
		return "integer"
	case SortFloat:
		return "number"
	case SortBool:
		return "boolean"
	default:
		return "string"
	}
}

// NodeJSONSchema renders one node's attribute and foreign-key shape as a
// *jsonschema.Schema object, one property per attribute plus one
// "x-relation"-tagged property per outgoing foreign key. This is read-only
// introspection, not a parser: it never consumes CQL text, only produces a
// JSON Schema document describing a node already built in memory.
func (s *Schema) NodeJSONSchema(node NodeName) (*jsonschema.Schema, error) {
	if !s.HasNode(node) {
		return nil, NewCatrustError(ErrorTypeStructural, ErrCodeUnknownNode,
			fmt.Sprintf("cannot render JSON schema for unknown node %q", node))
	}

	properties := make(map[string]any)
	for _, a := range s.AttributesOf(node) {
		properties[string(a.Name)] = map[string]any{"type": sortToJSONType(a.Sort)}
	}
	for _, fk := range s.EdgesFrom(node) {
		properties[string(fk.Name)] = map[string]any{
			"type": "integer",
			"x-relation": relationExtension{
				Edge:   string(fk.Name),
				Target: string(fk.To),
			},
		}
	}

	raw := map[string]any{
		"type":       "object",
		"title":      string(node),
		"properties": properties,
	}

	bytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshaling node %q schema: %w", node, err)
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(bytes, &schema); err != nil {
		return nil, fmt.Errorf("unmarshaling node %q into jsonschema.Schema: %w", node, err)
	}

	return &schema, nil
}
