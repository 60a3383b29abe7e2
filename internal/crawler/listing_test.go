package crawler_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpick/picklist-crawler/internal/crawler"
)

func TestPageURL(t *testing.T) {
	cfg := crawler.ListingConfig{
		BaseURL:      "https://apps.irs.gov/app/picklist/list/priorFormPublication.html",
		PageSize:     200,
		SortColumn:   "sortOrder",
		IsDescending: false,
	}

	t.Run("EncodesCursorParameters", func(t *testing.T) {
		raw, err := cfg.PageURL(400)
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "400", q.Get("indexOfFirstRow"))
		assert.Equal(t, "200", q.Get("resultsPerPage"))
		assert.Equal(t, "sortOrder", q.Get("sortColumn"))
		assert.Equal(t, "false", q.Get("isDescending"))
		// Empty search narrows nothing: the full listing is walked.
		assert.True(t, q.Has("value"))
		assert.True(t, q.Has("criteria"))
		assert.Empty(t, q.Get("value"))
		assert.Empty(t, q.Get("criteria"))
	})

	t.Run("OffsetZeroIsFirstPage", func(t *testing.T) {
		raw, err := cfg.PageURL(0)
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "0", u.Query().Get("indexOfFirstRow"))
	})

	t.Run("BadBaseURLErrors", func(t *testing.T) {
		bad := crawler.ListingConfig{BaseURL: "://missing-scheme", PageSize: 200}
		_, err := bad.PageURL(0)
		assert.Error(t, err)
	})
}
