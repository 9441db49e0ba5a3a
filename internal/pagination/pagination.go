// Package pagination builds the length-aware paginator that list pages are rendered with.
package pagination

import (
	"net/url"
	"strconv"
)

// OnEachSide is the number of page links shown on each side of the current page once the page
// window has to be shortened.
const OnEachSide = 3

// Labels of the links around the page window.
const (
	PreviousLabel = "&laquo; Previous"
	NextLabel     = "Next &raquo;"
	Ellipsis      = "..."
)

// Link is one entry of the pagination bar. URL is nil for disabled links and ellipses.
type Link struct {
	URL    *string `json:"url"`
	Label  string  `json:"label"`
	Active bool    `json:"active"`
}

// Paginator is one page of items together with everything a client needs to render the
// pagination bar.
type Paginator[T any] struct {
	Data         []T     `json:"data"`
	CurrentPage  int     `json:"current_page"`
	FirstPageURL string  `json:"first_page_url"`
	From         *int    `json:"from"`
	LastPage     int     `json:"last_page"`
	LastPageURL  string  `json:"last_page_url"`
	Links        []Link  `json:"links"`
	NextPageURL  *string `json:"next_page_url"`
	Path         string  `json:"path"`
	PerPage      int     `json:"per_page"`
	PrevPageURL  *string `json:"prev_page_url"`
	To           *int    `json:"to"`
	Total        int     `json:"total"`
}

// New builds the paginator for the items of the current page. Page URLs are built from path and
// keep all parameters of query except for the page number.
func New[T any](items []T, total, perPage, currentPage int, path string, query url.Values) Paginator[T] {
	if perPage < 1 {
		perPage = 1
	}
	if currentPage < 1 {
		currentPage = 1
	}
	if items == nil {
		items = []T{}
	}
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}

	p := Paginator[T]{
		Data:        items,
		CurrentPage: currentPage,
		LastPage:    lastPage,
		Path:        path,
		PerPage:     perPage,
		Total:       total,
	}
	pageURL := func(page int) string {
		q := url.Values{}
		for key, values := range query {
			q[key] = values
		}
		q.Set("page", strconv.Itoa(page))
		return path + "?" + q.Encode()
	}

	p.FirstPageURL = pageURL(1)
	p.LastPageURL = pageURL(lastPage)
	if currentPage > 1 {
		prev := pageURL(currentPage - 1)
		p.PrevPageURL = &prev
	}
	if currentPage < lastPage {
		next := pageURL(currentPage + 1)
		p.NextPageURL = &next
	}
	if len(items) > 0 {
		from := (currentPage-1)*perPage + 1
		to := from + len(items) - 1
		p.From, p.To = &from, &to
	}

	p.Links = append(p.Links, Link{URL: p.PrevPageURL, Label: PreviousLabel})
	for _, page := range Window(currentPage, lastPage) {
		if page == 0 {
			p.Links = append(p.Links, Link{Label: Ellipsis})
			continue
		}
		u := pageURL(page)
		p.Links = append(p.Links, Link{URL: &u, Label: strconv.Itoa(page), Active: page == currentPage})
	}
	p.Links = append(p.Links, Link{URL: p.NextPageURL, Label: NextLabel})
	return p
}

// Window returns the page numbers to link to, with 0 standing for an ellipsis. Short page ranges
// are shown in full. Longer ranges show the first and last two pages and a slider around the
// current page.
func Window(currentPage, lastPage int) []int {
	if lastPage < OnEachSide*2+8 {
		return pageRange(1, lastPage)
	}
	window := OnEachSide + 4
	start := pageRange(1, 2)
	finish := pageRange(lastPage-1, lastPage)
	switch {
	case currentPage <= window:
		return join(pageRange(1, window+OnEachSide), finish)
	case currentPage > lastPage-window:
		return join(start, pageRange(lastPage-(window+OnEachSide-1), lastPage))
	default:
		return join(start, pageRange(currentPage-OnEachSide, currentPage+OnEachSide), finish)
	}
}

func pageRange(first, last int) []int {
	pages := make([]int, 0, last-first+1)
	for page := first; page <= last; page++ {
		pages = append(pages, page)
	}
	return pages
}

// join concatenates the page groups with an ellipsis between them.
func join(groups ...[]int) []int {
	var pages []int
	for i, group := range groups {
		if i > 0 {
			pages = append(pages, 0)
		}
		pages = append(pages, group...)
	}
	return pages
}
