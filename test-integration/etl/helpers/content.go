package helpers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Content writes rows into the content schema
type Content struct {
	pool *pgxpool.Pool
}

// NewContent returns a writer over pool
func NewContent(pool *pgxpool.Pool) *Content {
	return &Content{pool: pool}
}

// Reset removes every content row
func (c *Content) Reset(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, `TRUNCATE content.person_film_work, content.genre_film_work,
		content.film_work, content.genre, content.person`)
	return err
}

// Film inserts a film_work row
func (c *Content) Film(ctx context.Context, title string, rating float64, modified time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := c.pool.Exec(ctx,
		`INSERT INTO content.film_work (id, title, description, rating, modified) VALUES ($1, $2, $3, $4, $5)`,
		id, title, fmt.Sprintf("About %s", title), rating, modified)
	return id, err
}

// Person inserts a person row
func (c *Content) Person(ctx context.Context, name string, modified time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := c.pool.Exec(ctx,
		`INSERT INTO content.person (id, full_name, modified) VALUES ($1, $2, $3)`, id, name, modified)
	return id, err
}

// Genre inserts a genre row
func (c *Content) Genre(ctx context.Context, name string, modified time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := c.pool.Exec(ctx,
		`INSERT INTO content.genre (id, name, modified) VALUES ($1, $2, $3)`, id, name, modified)
	return id, err
}

// Cast links a person to a film with role
func (c *Content) Cast(ctx context.Context, film, person uuid.UUID, role string) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO content.person_film_work (id, person_id, film_work_id, role) VALUES ($1, $2, $3, $4)`,
		uuid.New(), person, film, role)
	return err
}

// Tag links a genre to a film
func (c *Content) Tag(ctx context.Context, film, genre uuid.UUID) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO content.genre_film_work (id, genre_id, film_work_id) VALUES ($1, $2, $3)`,
		uuid.New(), genre, film)
	return err
}

// RenamePerson changes a person's name and bumps its modification time
func (c *Content) RenamePerson(ctx context.Context, person uuid.UUID, name string, modified time.Time) error {
	_, err := c.pool.Exec(ctx,
		`UPDATE content.person SET full_name = $2, modified = $3 WHERE id = $1`, person, name, modified)
	return err
}
