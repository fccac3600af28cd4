// Package service provides the business logic layer for books, reading
// sessions, and derived statistics.
package service

import (
	"context"
	"log/slog"

	"github.com/readtrackapp/readtrack-server/internal/clock"
	"github.com/readtrackapp/readtrack-server/internal/domain"
	"github.com/readtrackapp/readtrack-server/internal/errors"
	"github.com/readtrackapp/readtrack-server/internal/id"
	"github.com/readtrackapp/readtrack-server/internal/store"
	"github.com/readtrackapp/readtrack-server/internal/validation"
)

// CreateBookRequest carries the user-supplied fields for a new book.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author"`
	TotalPages  int    `json:"total_pages" validate:"required,gt=0"`
	CurrentPage int    `json:"current_page" validate:"gte=0,ltefield=TotalPages"`
	Difficulty  int    `json:"difficulty" validate:"omitempty,min=1,max=5"`
	Category    string `json:"category"`
}

// BookService orchestrates book operations.
type BookService struct {
	store     store.Store
	clock     clock.Clock
	validator *validation.Validator
	logger    *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(st store.Store, clk clock.Clock, v *validation.Validator, logger *slog.Logger) *BookService {
	return &BookService{
		store:     st,
		clock:     clk,
		validator: v,
		logger:    logger,
	}
}

// Create validates the request and adds a book to the library.
func (s *BookService) Create(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if req.Difficulty == 0 {
		req.Difficulty = 3
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate book ID")
	}

	now := s.clock.Now()
	book := domain.NewBook(bookID, req.Title, req.Author, req.TotalPages, req.CurrentPage, req.Difficulty, req.Category, now)

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, errors.Storef(err, "create book %q", req.Title)
	}

	s.logger.Info("book added",
		"book_id", book.ID,
		"title", book.Title,
		"total_pages", book.TotalPages)
	return book, nil
}

// Get retrieves a single book by ID.
func (s *BookService) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("book %s not found", bookID)
		}
		return nil, errors.Storef(err, "get book %s", bookID)
	}
	return book, nil
}

// List returns books in the library, most recently added first.
func (s *BookService) List(ctx context.Context, includeInactive bool) ([]*domain.Book, error) {
	books, err := s.store.ListBooks(ctx, includeInactive)
	if err != nil {
		return nil, errors.Storef(err, "list books")
	}
	return books, nil
}

// Deactivate soft-deletes a book. Its sessions and history remain.
func (s *BookService) Deactivate(ctx context.Context, bookID string) error {
	book, err := s.Get(ctx, bookID)
	if err != nil {
		return err
	}
	if !book.IsActive {
		return nil
	}

	book.IsActive = false
	book.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateBook(ctx, book); err != nil {
		return errors.Storef(err, "update book %s", bookID)
	}

	s.logger.Info("book deactivated", "book_id", bookID, "title", book.Title)
	return nil
}
