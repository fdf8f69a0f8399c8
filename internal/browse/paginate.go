package browse

// DefaultPageSize is the number of listings per page.
const DefaultPageSize = 6

// maxVisiblePages is the width of the page-number window.
const maxVisiblePages = 5

// Page is one page of a paginated result.
type Page[T any] struct {
	Items       []T   `json:"items"`
	Page        int   `json:"page"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int   `json:"totalItems"`
	PageNumbers []int `json:"pageNumbers"`
}

// Paginate returns the requested page. The page number is clamped into
// [1, totalPages]; an empty input yields page 1 with no items. A size below
// 1 uses DefaultPageSize, and a size above the item count is one page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size < 1 {
		size = DefaultPageSize
	}
	size = min(size, max(len(items), 1))

	totalPages := (len(items) + size - 1) / size

	page = min(page, totalPages)
	page = max(1, page)

	start := min((page-1)*size, len(items))
	end := min(start+size, len(items))

	pageItems := make([]T, end-start)
	copy(pageItems, items[start:end])

	return Page[T]{
		Items:       pageItems,
		Page:        page,
		TotalPages:  totalPages,
		TotalItems:  len(items),
		PageNumbers: PageNumbers(page, totalPages),
	}
}

// PageNumbers returns the page links to show: every page when there are at
// most five, otherwise a window of five around current.
func PageNumbers(current, totalPages int) []int {
	pages := []int{}

	if totalPages <= maxVisiblePages {
		for i := 1; i <= totalPages; i++ {
			pages = append(pages, i)
		}
		return pages
	}

	start := max(1, current-2)
	end := min(totalPages, start+maxVisiblePages-1)

	if end-start < maxVisiblePages-1 {
		start = max(1, end-maxVisiblePages+1)
	}

	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}

	return pages
}
