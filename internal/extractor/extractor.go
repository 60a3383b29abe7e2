// Package extractor parses catalog rows out of a listing page.
package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/formpick/picklist-crawler/internal/catalog"
)

// Cell selectors of the picklist table. The first <tr> is always a header
// row by construction of the listing, so it is skipped by position rather
// than by content.
const (
	tableSelector = "table.picklist-dataTable"
	linkSelector  = "td.LeftCellSpacer a"
	titleSelector = "td.MiddleCellSpacer"
	yearSelector  = "td.EndCellSpacer"
)

// ParseError reports a row whose structure did not match the listing
// contract. It is always contained: the row is skipped, the rest of the page
// is processed.
type ParseError struct {
	Row    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse row %d: %s", e.Row, e.Reason)
}

// Extractor pulls catalog rows from listing page bytes.
type Extractor struct {
	logger *zap.Logger
}

// New builds an Extractor. A nil logger is replaced with a no-op one.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the data rows of the listing table, excluding the header
// row, plus the count of rows skipped due to parse errors. A missing or empty
// table yields zero rows, which is the pagination termination signal.
// Artifact hrefs are resolved against pageURL.
func (e *Extractor) Extract(pageURL string, body []byte) ([]catalog.Row, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse listing html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse page url: %w", err)
	}

	var (
		rows    []catalog.Row
		skipped int
	)
	doc.Find(tableSelector).First().Find("tr").Each(func(i int, sel *goquery.Selection) {
		if i == 0 {
			return
		}
		row, perr := e.extractRow(base, i, sel)
		if perr != nil {
			skipped++
			e.logger.Error("skipping malformed listing row",
				zap.String("page_url", pageURL),
				zap.Error(perr),
			)
			return
		}
		rows = append(rows, row)
	})
	return rows, skipped, nil
}

func (e *Extractor) extractRow(base *url.URL, index int, sel *goquery.Selection) (catalog.Row, *ParseError) {
	link := sel.Find(linkSelector).First()
	if link.Length() == 0 {
		return catalog.Row{}, &ParseError{Row: index, Reason: "missing link cell"}
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return catalog.Row{}, &ParseError{Row: index, Reason: "link has no href"}
	}
	key := recordKey(link.Text())
	if key == "" {
		return catalog.Row{}, &ParseError{Row: index, Reason: "empty record key"}
	}

	yearText := strings.TrimSpace(sel.Find(yearSelector).First().Text())
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return catalog.Row{}, &ParseError{Row: index, Reason: fmt.Sprintf("non-numeric year %q", yearText)}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return catalog.Row{}, &ParseError{Row: index, Reason: fmt.Sprintf("bad href %q", href)}
	}

	return catalog.Row{
		Key:         key,
		Title:       strings.TrimSpace(sel.Find(titleSelector).First().Text()),
		Year:        year,
		ArtifactURL: base.ResolveReference(ref).String(),
	}, nil
}

// recordKey trims the localized-name suffix the listing appends in
// parentheses, e.g. "Form 1040 (SP)" -> "Form 1040".
func recordKey(text string) string {
	key, _, _ := strings.Cut(text, " (")
	return strings.TrimSpace(key)
}
