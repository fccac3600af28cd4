package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/readtrackapp/readtrack-server/internal/domain"
	"github.com/readtrackapp/readtrack-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, author, total_pages, current_page,
	difficulty, category, date_added, is_active, created_at, updated_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		category  sql.NullString
		dateAdded string
		isActive  int
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.TotalPages,
		&b.CurrentPage,
		&b.Difficulty,
		&category,
		&dateAdded,
		&isActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if category.Valid {
		b.Category = category.String
	}
	b.IsActive = isActive != 0

	// Parse timestamps.
	b.DateAdded, err = parseTime(dateAdded)
	if err != nil {
		return nil, err
	}
	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBook inserts a new book.
// Returns store.ErrAlreadyExists if the book ID already exists.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, title, author, total_pages, current_page,
			difficulty, category, date_added, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		book.Author,
		book.TotalPages,
		book.CurrentPage,
		book.Difficulty,
		nullString(book.Category),
		formatTime(book.DateAdded),
		boolToInt(book.IsActive),
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetBook retrieves a single book by ID.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBook performs a full row update on an existing book.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET
			title = ?,
			author = ?,
			total_pages = ?,
			current_page = ?,
			difficulty = ?,
			category = ?,
			date_added = ?,
			is_active = ?,
			created_at = ?,
			updated_at = ?
		WHERE id = ?`,
		book.Title,
		book.Author,
		book.TotalPages,
		book.CurrentPage,
		book.Difficulty,
		nullString(book.Category),
		formatTime(book.DateAdded),
		boolToInt(book.IsActive),
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
		book.ID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListBooks returns books ordered by date added descending.
// Inactive (soft-deleted) books are excluded unless includeInactive is set.
func (s *Store) ListBooks(ctx context.Context, includeInactive bool) ([]*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY date_added DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}
