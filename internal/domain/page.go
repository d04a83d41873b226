package domain

import "math"

const (
	// DefaultPageSize используется, когда клиент не передал limit.
	DefaultPageSize = 10
	// MaxPageSize ограничивает размер страницы сверху.
	MaxPageSize = 100
	// MaxOffset насыщает смещение: дальше него страниц заведомо нет,
	// а значение помещается в OFFSET любой СУБД.
	MaxOffset = math.MaxInt32
)

// Page описывает запрошенную страницу. Size == 0 означает «без пагинации».
type Page struct {
	Number int
	Size   int
}

// NewPage нормализует номер и размер страницы.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset возвращает смещение первой записи страницы.
func (p Page) Offset() int {
	if p.Size <= 0 || p.Number <= 1 {
		return 0
	}
	if p.Number-1 > MaxOffset/p.Size {
		return MaxOffset
	}
	return (p.Number - 1) * p.Size
}

// TotalPages считает количество страниц для total записей.
func (p Page) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	if p.Size <= 0 {
		return 1
	}
	return (total + p.Size - 1) / p.Size
}
