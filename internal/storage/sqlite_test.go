package storage

import (
	"context"
	"testing"

	"cdrkit/internal/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTaxonomy() (*taxonomy.Graph, *taxonomy.Document) {
	g := taxonomy.NewGraph(nil)
	g.AddArc("call-report-taxonomy", "call-031-RCCII")
	g.AddArc("call-031-RCCII", "RCCII-line-4a")
	g.AddArc("RCCII-line-4a", "cc_RCON2170")
	g.AddLabel("call-031-RCCII", "Schedule RC-C Part II")

	doc, err := taxonomy.BuildHierarchy(g, "031", "2021-03-31")
	if err != nil {
		panic(err)
	}
	doc.Data["cc_RCON2170"]["RCCII"].Reference = &taxonomy.Reference{Line: "4a", Column: "A"}
	return g, doc
}

func TestSaveTaxonomy(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	g, doc := sampleTaxonomy()
	require.NoError(t, store.SaveTaxonomy(ctx, g, doc))

	n, err := store.CountEntries(ctx, "031", "2021-03-31")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	t.Run("resave is idempotent", func(t *testing.T) {
		require.NoError(t, store.SaveTaxonomy(ctx, g, doc))
		n, err := store.CountEntries(ctx, "031", "2021-03-31")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestSaveTaxonomy_PersistsNodesAndEdges(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	g, doc := sampleTaxonomy()
	require.NoError(t, store.SaveTaxonomy(ctx, g, doc))

	var nodes, edges int
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&nodes))
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&edges))
	assert.Equal(t, 4, nodes)
	assert.Equal(t, 3, edges)

	var label string
	require.NoError(t, store.db.QueryRowContext(ctx,
		"SELECT label FROM nodes WHERE code = ?", "call-031-RCCII").Scan(&label))
	assert.Equal(t, "Schedule RC-C Part II", label)
}
