package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvollmer/fabula/model"
)

func testWorld() ([]*model.Character, []*model.Item, []*model.Location) {
	characters := []*model.Character{
		{Name: "Lin", Bio: "A wandering swordswoman.", Relations: []model.Relation{
			{Target: "Master Su", Type: "apprentice-of"},
		}},
		{Name: "Master Su", Bio: "Retired blade master."},
		{Name: "Isolated", Bio: "Nobody knows them."},
	}
	items := []*model.Item{
		{Name: "Frost Blade", Type: "weapon", Owner: "Lin", Desc: "A sword that never warms."},
	}
	locations := []*model.Location{
		{Name: "River Town", Faction: "neutral", Neighbors: []string{"Cold Pass"}},
		{Name: "Cold Pass", Neighbors: []string{"River Town"}},
		{Name: "Su Cottage", Parent: "Cold Pass"},
	}
	return characters, items, locations
}

func TestBuild(t *testing.T) {
	t.Run("One node per entity", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		assert.Equal(t, 7, g.NodeCount())
		assert.True(t, g.HasNode("Lin"))
		assert.True(t, g.HasNode("Frost Blade"))
		assert.True(t, g.HasNode("Su Cottage"))
	})

	t.Run("Relation target missing from collections becomes a placeholder node", func(t *testing.T) {
		characters := []*model.Character{
			{Name: "Lin", Relations: []model.Relation{{Target: "Unknown Rival", Type: "rival"}}},
		}
		g := Build(characters, nil, nil, 50)

		assert.True(t, g.HasNode("Unknown Rival"), "Expected edge endpoints to exist as nodes")
	})

	t.Run("Malformed entities default instead of aborting", func(t *testing.T) {
		characters := []*model.Character{
			nil,
			{Name: ""},
			{Name: "Valid"},
		}
		g := Build(characters, []*model.Item{{Name: "Thing"}}, nil, 50)

		assert.True(t, g.HasNode("Valid"))
		assert.True(t, g.HasNode("Thing"))
		assert.Equal(t, 2, g.NodeCount())
	})

	t.Run("Descriptions are truncated", func(t *testing.T) {
		characters := []*model.Character{
			{Name: "Long", Bio: strings.Repeat("x", 200)},
		}
		g := Build(characters, nil, nil, 50)

		node := g.nodes["Long"]
		require.NotNil(t, node)
		assert.Equal(t, strings.Repeat("x", 50)+"...", node.Desc)
	})
}

func TestNeighborhood(t *testing.T) {
	t.Run("One hop includes incoming and outgoing edges", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		rendered := g.Neighborhood("Lin", 1)

		assert.Contains(t, rendered, "Lin apprentice-of Master Su")
		assert.Contains(t, rendered, "Lin holds Frost Blade")
		assert.NotContains(t, rendered, "River Town", "Expected unrelated locations to stay out of the neighborhood")
	})

	t.Run("Incoming edges count as reachable", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		rendered := g.Neighborhood("Frost Blade", 1)

		assert.Contains(t, rendered, "Lin holds Frost Blade", "Expected who-points-at-me to be part of the neighborhood")
	})

	t.Run("Two hops reach the parent location", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		rendered := g.Neighborhood("Su Cottage", 2)

		assert.Contains(t, rendered, "Su Cottage belongs-to Cold Pass")
		assert.Contains(t, rendered, "River Town connected Cold Pass")
	})

	t.Run("Unknown entity yields empty text", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		assert.Equal(t, "", g.Neighborhood("Ghost", 1))
	})
}

func TestShortestPath(t *testing.T) {
	t.Run("Path through directed edges", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		path, ok := g.ShortestPath("Su Cottage", "River Town")

		require.True(t, ok)
		assert.Equal(t, []string{"Su Cottage", "Cold Pass", "River Town"}, path)
	})

	t.Run("Arrow-joined rendering", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		assert.Equal(t, "Su Cottage -> Cold Pass -> River Town", g.ShortestPathString("Su Cottage", "River Town"))
	})

	t.Run("Direction matters", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		_, ok := g.ShortestPath("River Town", "Su Cottage")

		assert.False(t, ok, "Expected belongs-to to be traversable only from child to parent")
	})

	t.Run("Disconnected nodes yield an explicit no-path result", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		path, ok := g.ShortestPath("Isolated", "Lin")

		assert.False(t, ok)
		assert.Nil(t, path)
		assert.Equal(t, "no path found", g.ShortestPathString("Isolated", "Lin"))
	})

	t.Run("Absent endpoints yield no path, not a panic", func(t *testing.T) {
		g := Build(nil, nil, nil, 50)

		assert.Equal(t, "no path found", g.ShortestPathString("Nobody", "Nowhere"))
	})

	t.Run("Same node is a length-one path", func(t *testing.T) {
		characters, items, locations := testWorld()
		g := Build(characters, items, locations, 50)

		path, ok := g.ShortestPath("Lin", "Lin")

		require.True(t, ok)
		assert.Equal(t, []string{"Lin"}, path)
	})
}
