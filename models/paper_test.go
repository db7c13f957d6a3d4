package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAuthorList(t *testing.T) {
	paper := Paper{Authors: datatypes.JSON(`[{"id":1,"name":"Ada"},{"id":2,"name":"Bob"}]`)}
	authors := paper.AuthorList()
	require.Len(t, authors, 2)
	assert.Equal(t, "Ada", authors[0].Name)

	t.Run("empty column", func(t *testing.T) {
		assert.Nil(t, (&Paper{}).AuthorList())
	})
}

func TestVenueRecord(t *testing.T) {
	paper := Paper{Venue: datatypes.JSON(`{"id":9,"name":"JACM"}`)}
	venue, ok := paper.VenueRecord()
	require.True(t, ok)
	assert.EqualValues(t, 9, venue.ID)
	assert.Equal(t, "JACM", venue.Name)

	t.Run("absent venue", func(t *testing.T) {
		_, ok := (&Paper{}).VenueRecord()
		assert.False(t, ok)
	})
}

func TestReferenceIDs(t *testing.T) {
	t.Run("numeric ids", func(t *testing.T) {
		paper := Paper{References: datatypes.JSON(`[100,101]`)}
		assert.Equal(t, []string{"100", "101"}, paper.ReferenceIDs())
	})
	t.Run("string ids", func(t *testing.T) {
		paper := Paper{References: datatypes.JSON(`["a1","b2"]`)}
		assert.Equal(t, []string{"a1", "b2"}, paper.ReferenceIDs())
	})
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, (&Paper{}).ReferenceIDs())
	})
}

func TestFirstURL(t *testing.T) {
	paper := Paper{URLs: datatypes.JSON(`["https://a.example","https://b.example"]`)}
	assert.Equal(t, "https://a.example", paper.FirstURL())

	t.Run("empty list", func(t *testing.T) {
		paper := Paper{URLs: datatypes.JSON(`[]`)}
		assert.Empty(t, paper.FirstURL())
	})
}
