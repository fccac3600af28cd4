// Package domain contains the core business entities and domain logic for the ReadTrack library.
package domain

import "time"

// Book represents a book being tracked in the library.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage int       `json:"current_page"`
	Difficulty  int       `json:"difficulty"` // 1 (easy) .. 5 (hard)
	Category    string    `json:"category,omitempty"`
	DateAdded   time.Time `json:"date_added"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewBook creates a book with timestamps initialized.
// CurrentPage is only ever advanced by session completion after this point.
func NewBook(id, title, author string, totalPages, currentPage, difficulty int, category string, now time.Time) *Book {
	return &Book{
		ID:          id,
		Title:       title,
		Author:      author,
		TotalPages:  totalPages,
		CurrentPage: currentPage,
		Difficulty:  difficulty,
		Category:    category,
		DateAdded:   now,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PercentComplete returns reading progress as 0-100.
func (b *Book) PercentComplete() float64 {
	if b.TotalPages <= 0 {
		return 0
	}
	return float64(b.CurrentPage) / float64(b.TotalPages) * 100
}

// IsFinished reports whether the reader has reached the last page.
func (b *Book) IsFinished() bool {
	return b.TotalPages > 0 && b.CurrentPage >= b.TotalPages
}
