// Package catalog defines the record model for the form catalog and the
// aggregator that folds listing rows into it.
package catalog

// Row is one raw entry extracted from a single listing page. Rows are
// ephemeral: they are produced per page, folded into the aggregate and
// handed to the downloader, then discarded.
type Row struct {
	// Key is the natural identifier of the form, taken from the row's link
	// text with any localized-name suffix stripped.
	Key string
	// Title is the descriptive label from the title cell.
	Title string
	// Year is the revision year from the year cell.
	Year int
	// ArtifactURL is the absolute URL of the PDF linked by the row.
	ArtifactURL string
}

// Record is a deduplicated catalog entry carrying the range of years its key
// has been observed with.
type Record struct {
	Key     string `json:"form_number"`
	Title   string `json:"form_title"`
	MinYear int    `json:"min_year"`
	MaxYear int    `json:"max_year"`
}
