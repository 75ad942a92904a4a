package repository

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a zero-based slice of a result set.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number and size to valid values.
func NewPage(number, size int) Page {
	if number < 0 {
		number = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Limit() int {
	return NewPage(p.Number, p.Size).Size
}

func (p Page) Offset() int {
	n := NewPage(p.Number, p.Size)
	return n.Number * n.Size
}

// PageResult is one page of items plus totals.
type PageResult[T any] struct {
	Items         []T   `json:"items"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
	Empty         bool  `json:"empty"`
}

// NewPageResult derives the paging flags from total.
func NewPageResult[T any](items []T, page Page, total int64) PageResult[T] {
	page = NewPage(page.Number, page.Size)
	if items == nil {
		items = []T{}
	}
	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return PageResult[T]{
		Items:         items,
		Page:          page.Number,
		Size:          page.Size,
		TotalElements: total,
		TotalPages:    totalPages,
		First:         page.Number == 0,
		Last:          page.Number >= totalPages-1,
		Empty:         len(items) == 0,
	}
}
