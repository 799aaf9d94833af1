package catrust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRenameMappingSchemas(t *testing.T) (*Schema, *Schema) {
	t.Helper()
	source := NewSchema()
	require.NoError(t, source.AddNode("Person"))
	require.NoError(t, source.AddAttribute("fullName", "Person", SortString))

	target := NewSchema()
	require.NoError(t, target.AddNode("Human"))
	require.NoError(t, target.AddAttribute("displayName", "Human", SortString))

	return source, target
}

func TestMapNodeRejectsUnknownNodes(t *testing.T) {
	source, target := buildRenameMappingSchemas(t)
	m := NewMapping(source, target)

	err := m.MapNode("Ghost", "Human")
	require.Error(t, err)

	err = m.MapNode("Person", "Ghost")
	require.Error(t, err)

	require.NoError(t, m.MapNode("Person", "Human"))
	img, ok := m.NodeImage("Person")
	require.True(t, ok)
	assert.Equal(t, NodeName("Human"), img)
}

func TestMapAttrDirectAndIsComplete(t *testing.T) {
	source, target := buildRenameMappingSchemas(t)
	m := NewMapping(source, target)

	assert.False(t, m.IsComplete())

	require.NoError(t, m.MapNode("Person", "Human"))
	require.NoError(t, m.MapAttrDirect("fullName", "displayName"))

	assert.True(t, m.IsComplete())
	assert.Empty(t, m.Validate())

	path, ok := m.AttrImage("fullName")
	require.True(t, ok)
	assert.Equal(t, AttrName("displayName"), path.Attr)
}

func TestMapAttrRejectsNonAttributePath(t *testing.T) {
	source, target := buildRenameMappingSchemas(t)
	require.NoError(t, target.AddNode("Other"))
	require.NoError(t, target.AddForeignKey("other", "Human", "Other"))

	m := NewMapping(source, target)
	require.NoError(t, m.MapNode("Person", "Human"))

	err := m.MapAttr("fullName", Path{From: "Human", Hops: []EdgeName{"other"}})
	require.Error(t, err)
	ce, ok := err.(*CatrustError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeKindMismatch, ce.Code)
}

func TestMapFKRejectsAttributeTerminatedPath(t *testing.T) {
	s := buildSquareSchema(t)
	m := NewMapping(s, s)
	for _, n := range []NodeName{"Order", "Customer", "Address"} {
		require.NoError(t, m.MapNode(n, n))
	}

	err := m.MapFK("customer", Path{From: "Order", Attr: "total"})
	require.Error(t, err)
}

func TestValidateReportsMissingImages(t *testing.T) {
	source, target := buildRenameMappingSchemas(t)
	m := NewMapping(source, target)

	findings := m.Validate()
	require.NotEmpty(t, findings)
	assert.Equal(t, ErrCodeMissingFK, findings[0].Code)
}

func TestImagePathComposesHopsAndAttr(t *testing.T) {
	s := buildSquareSchema(t)
	require.NoError(t, s.AddAttribute("city", "Address", SortString))

	m := NewMapping(s, s)
	for _, n := range []NodeName{"Order", "Customer", "Address"} {
		require.NoError(t, m.MapNode(n, n))
	}
	require.NoError(t, m.MapFK("customer", Path{From: "Order", Hops: []EdgeName{"customer"}}))
	require.NoError(t, m.MapFK("address", Path{From: "Customer", Hops: []EdgeName{"address"}}))
	require.NoError(t, m.MapAttrDirect("city", "city"))

	img, err := m.ImagePath(Path{From: "Order", Hops: []EdgeName{"customer", "address"}, Attr: "city"})
	require.NoError(t, err)
	assert.Equal(t, []EdgeName{"customer", "address"}, img.Hops)
	assert.Equal(t, AttrName("city"), img.Attr)
}
