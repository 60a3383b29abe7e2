package crawler

import (
	"fmt"
	"net/url"
	"strconv"
)

// ListingConfig describes the paginated listing endpoint. The upstream
// publishes no total row count; pagination walks by offset until a page
// yields no rows.
type ListingConfig struct {
	// BaseURL is the listing endpoint without pagination parameters.
	BaseURL string `mapstructure:"base_url"`
	// PageSize is the resultsPerPage value and the cursor stride.
	PageSize int `mapstructure:"page_size"`
	// SortColumn and IsDescending select the listing order. Any stable
	// order works; the aggregate is order-insensitive.
	SortColumn   string `mapstructure:"sort_column"`
	IsDescending bool   `mapstructure:"is_descending"`
}

// PageURL returns the listing URL for the page starting at offset.
func (c ListingConfig) PageURL(offset int) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse listing base url: %w", err)
	}
	q := u.Query()
	q.Set("indexOfFirstRow", strconv.Itoa(offset))
	q.Set("sortColumn", c.SortColumn)
	q.Set("value", "")
	q.Set("criteria", "")
	q.Set("resultsPerPage", strconv.Itoa(c.PageSize))
	q.Set("isDescending", strconv.FormatBool(c.IsDescending))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
