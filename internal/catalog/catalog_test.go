package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/backend/memkv"
	"reifydb/internal/logging"
)

func newTestCatalog() *Catalog {
	b := memkv.New()
	return New(b.Single(), b.Single(), logging.Discard())
}

func TestCreateNamespaceAndLookupByName(t *testing.T) {
	c := newTestCatalog()

	id, err := c.NextID("next_namespace_id")
	require.NoError(t, err)

	def, err := c.Namespaces.Create(1, id, 0, "public", NamespaceDef{ID: id, Name: "public"})
	require.NoError(t, err)
	assert.Equal(t, "public", def.Name)

	found, ok, err := c.Namespaces.ByName(0, "public", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, found.ID)
}

func TestCreateDuplicateNameFails(t *testing.T) {
	c := newTestCatalog()
	id, _ := c.NextID("next_namespace_id")
	_, err := c.Namespaces.Create(1, id, 0, "public", NamespaceDef{ID: id, Name: "public"})
	require.NoError(t, err)

	otherID, _ := c.NextID("next_namespace_id")
	_, err = c.Namespaces.Create(2, otherID, 0, "public", NamespaceDef{ID: otherID, Name: "public"})
	require.Error(t, err)
}

func TestDropRemovesNameIndexAndHidesDefinitionAtLaterVersions(t *testing.T) {
	c := newTestCatalog()
	id, _ := c.NextID("next_table_id")
	_, err := c.Tables.Create(1, id, 1, "orders", TableDef{ID: id, NamespaceID: 1, Name: "orders"})
	require.NoError(t, err)

	require.NoError(t, c.Tables.Drop(2, 1, "orders"))

	_, ok, err := c.Tables.ByName(1, "orders", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	// The definition is still visible at the version it was live.
	def, ok := c.Tables.At(id, 1)
	require.True(t, ok)
	assert.Equal(t, "orders", def.Name)
}

func TestRecreatingADroppedNameSucceeds(t *testing.T) {
	c := newTestCatalog()
	id, _ := c.NextID("next_view_id")
	_, err := c.Views.Create(1, id, 1, "v1", ViewDef{ID: id, NamespaceID: 1, Name: "v1"})
	require.NoError(t, err)
	require.NoError(t, c.Views.Drop(2, 1, "v1"))

	newID, _ := c.NextID("next_view_id")
	_, err = c.Views.Create(3, newID, 1, "v1", ViewDef{ID: newID, NamespaceID: 1, Name: "v1"})
	require.NoError(t, err)

	found, ok, err := c.Views.ByName(1, "v1", 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newID, found.ID)
}

func TestChildStoreColumnsListInIDOrder(t *testing.T) {
	c := newTestCatalog()
	c.Columns.Create(1, 10, 3, ColumnDef{ID: 3, SourceID: 10, Name: "c"})
	c.Columns.Create(1, 10, 1, ColumnDef{ID: 1, SourceID: 10, Name: "a"})
	c.Columns.Create(1, 10, 2, ColumnDef{ID: 2, SourceID: 10, Name: "b"})

	cols := c.Columns.ListAt(10, 1)
	require.Len(t, cols, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{cols[0].Name, cols[1].Name, cols[2].Name})
}

func TestChildStoreDropHidesEntryAtLaterVersion(t *testing.T) {
	c := newTestCatalog()
	c.Indexes.Create(1, 10, 1, IndexDef{ID: 1, SourceID: 10, Name: "idx_a"})
	require.NoError(t, c.Indexes.Drop(2, 10, 1))

	_, ok := c.Indexes.At(10, 1, 1)
	assert.True(t, ok)
	_, ok = c.Indexes.At(10, 1, 2)
	assert.False(t, ok)
}

func TestNextIDIsMonotonicAndPersisted(t *testing.T) {
	c := newTestCatalog()
	a, err := c.NextID("next_table_id")
	require.NoError(t, err)
	b, err := c.NextID("next_table_id")
	require.NoError(t, err)
	assert.Equal(t, a+1, b)

	other, err := c.NextID("next_column_id")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), other)
}

func TestRingBufferMetaIsCreatedLazilyAndShared(t *testing.T) {
	c := newTestCatalog()
	m1 := c.RingBufferMeta(5)
	m1.Head = 3
	m2 := c.RingBufferMeta(5)
	assert.Equal(t, uint64(3), m2.Head)
}
