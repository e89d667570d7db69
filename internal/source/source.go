// Package source extracts the films affected by changes in the content database.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/movies-etl/internal/checkpoint"
	"github.com/stacklok/movies-etl/internal/db"
	"github.com/stacklok/movies-etl/internal/db/sqlc"
	"github.com/stacklok/movies-etl/internal/document"
	"github.com/stacklok/movies-etl/internal/otel"
	"github.com/stacklok/movies-etl/internal/retry"
)

//go:generate mockgen -destination=mocks/mock_reader.go -package=mocks -source=source.go Reader

const (
	// TracerName is the name used for the extract tracer
	TracerName = "github.com/stacklok/movies-etl/source"

	// DefaultPageSize bounds the modified rows read per stream
	DefaultPageSize = 100
)

// ErrMalformedRow is returned when a detail row does not have the expected shape
var ErrMalformedRow = errors.New("malformed source row")

// EntityRef identifies a modified row of one stream
type EntityRef struct {
	ID       uuid.UUID
	Modified time.Time
}

// Extraction is the outcome of one extract
type Extraction struct {
	// ImpactSet holds every film to re-publish, each once, in first-seen order
	ImpactSet []uuid.UUID

	// Rows are the detail join rows of the films in ImpactSet
	Rows []document.JoinRow

	// Watermarks holds the new watermark of every stream that returned rows
	Watermarks checkpoint.Watermarks

	// Modified counts the modified rows read per stream
	Modified map[checkpoint.Stream]int
}

// Count returns the number of impacted films
func (e *Extraction) Count() int {
	return len(e.ImpactSet)
}

// Reader reads what changed since the given watermarks
type Reader interface {
	Extract(ctx context.Context, watermarks checkpoint.Watermarks) (*Extraction, error)
}

// options holds configuration options for the reader
type options struct {
	pageSize int
	policy   *retry.Policy
	tracer   trace.Tracer
}

// Option is a functional option for configuring the reader
type Option func(*options) error

// WithPageSize sets the number of modified rows read per stream and extract
func WithPageSize(size int) Option {
	return func(o *options) error {
		if size <= 0 {
			return fmt.Errorf("page size must be greater than zero, got %d", size)
		}
		o.pageSize = size
		return nil
	}
}

// WithRetryPolicy sets the policy applied to every query
func WithRetryPolicy(p *retry.Policy) Option {
	return func(o *options) error {
		if p == nil {
			return fmt.Errorf("retry policy is required")
		}
		o.policy = p
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the reader.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

type reader struct {
	queries  sqlc.Querier
	pageSize int32
	policy   *retry.Policy
	tracer   trace.Tracer
}

// NewReader creates a Reader issuing its queries through q
func NewReader(q sqlc.Querier, opts ...Option) (Reader, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}

	o := &options{
		pageSize: DefaultPageSize,
		policy:   retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return &reader{
		queries:  q,
		pageSize: int32(o.pageSize), //nolint:gosec // bounded by config validation
		policy:   o.policy.WithClassifier(db.IsTransient),
		tracer:   o.tracer,
	}, nil
}

// Extract reads one page of modified rows per stream, resolves the films they
// affect and fetches the detail rows of those films
func (r *reader) Extract(ctx context.Context, watermarks checkpoint.Watermarks) (*Extraction, error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "source.Extract",
		trace.WithAttributes(otel.AttrPageSize.Int(int(r.pageSize))))
	defer span.End()

	ext, err := r.extract(ctx, watermarks)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(otel.AttrResultCount.Int(ext.Count()))
	return ext, nil
}

func (r *reader) extract(ctx context.Context, watermarks checkpoint.Watermarks) (*Extraction, error) {
	ext := &Extraction{
		Watermarks: checkpoint.Watermarks{},
		Modified:   make(map[checkpoint.Stream]int, len(checkpoint.Streams)),
	}
	impact := newImpactSet()

	persons, err := r.modified(ctx, checkpoint.StreamPerson, watermarks)
	if err != nil {
		return nil, err
	}
	genres, err := r.modified(ctx, checkpoint.StreamGenre, watermarks)
	if err != nil {
		return nil, err
	}
	films, err := r.modified(ctx, checkpoint.StreamFilmwork, watermarks)
	if err != nil {
		return nil, err
	}

	for stream, refs := range map[checkpoint.Stream][]EntityRef{
		checkpoint.StreamPerson:   persons,
		checkpoint.StreamGenre:    genres,
		checkpoint.StreamFilmwork: films,
	} {
		ext.Modified[stream] = len(refs)
		if wm, ok := maxModified(refs); ok {
			ext.Watermarks[stream] = wm
		}
	}

	impact.add(films)

	if len(persons) > 0 {
		byPerson, err := r.filmsByPersons(ctx, ids(persons))
		if err != nil {
			return nil, err
		}
		impact.add(byPerson)
	}
	if len(genres) > 0 {
		byGenre, err := r.filmsByGenres(ctx, ids(genres))
		if err != nil {
			return nil, err
		}
		impact.add(byGenre)
	}

	ext.ImpactSet = impact.ids

	slog.InfoContext(ctx, "Extracted modified data",
		"persons", len(persons),
		"genres", len(genres),
		"filmworks", len(films),
		"impacted_films", len(ext.ImpactSet),
	)

	if len(ext.ImpactSet) == 0 {
		return ext, nil
	}

	rows, err := r.details(ctx, ext.ImpactSet)
	if err != nil {
		return nil, err
	}
	ext.Rows = rows

	slog.DebugContext(ctx, "Fetched film details", "films", len(ext.ImpactSet), "rows", len(rows))
	return ext, nil
}

// modified lists one page of the stream's rows changed after its watermark
func (r *reader) modified(ctx context.Context, stream checkpoint.Stream, watermarks checkpoint.Watermarks) ([]EntityRef, error) {
	since := watermarks.Get(stream)
	name := "extract." + string(stream)

	refs, err := retry.Do(ctx, r.policy, name, func(ctx context.Context) ([]EntityRef, error) {
		switch stream {
		case checkpoint.StreamPerson:
			rows, err := r.queries.ListModifiedPersons(ctx, sqlc.ListModifiedPersonsParams{Since: since, PageSize: r.pageSize})
			if err != nil {
				return nil, err
			}
			refs := make([]EntityRef, 0, len(rows))
			for _, row := range rows {
				refs = append(refs, EntityRef{ID: row.ID, Modified: row.Modified})
			}
			return refs, nil
		case checkpoint.StreamGenre:
			rows, err := r.queries.ListModifiedGenres(ctx, sqlc.ListModifiedGenresParams{Since: since, PageSize: r.pageSize})
			if err != nil {
				return nil, err
			}
			refs := make([]EntityRef, 0, len(rows))
			for _, row := range rows {
				refs = append(refs, EntityRef{ID: row.ID, Modified: row.Modified})
			}
			return refs, nil
		case checkpoint.StreamFilmwork:
			rows, err := r.queries.ListModifiedFilmworks(ctx, sqlc.ListModifiedFilmworksParams{Since: since, PageSize: r.pageSize})
			if err != nil {
				return nil, err
			}
			refs := make([]EntityRef, 0, len(rows))
			for _, row := range rows {
				refs = append(refs, EntityRef{ID: row.ID, Modified: row.Modified})
			}
			return refs, nil
		default:
			return nil, fmt.Errorf("unknown stream %q", stream)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list modified %s rows: %w", stream, err)
	}

	trace.SpanFromContext(ctx).AddEvent("modified rows listed", trace.WithAttributes(
		otel.AttrStream.String(string(stream)),
		otel.AttrResultCount.Int(len(refs)),
	))
	slog.DebugContext(ctx, "Listed modified rows", "stream", stream, "since", since, "count", len(refs))
	return refs, nil
}

func (r *reader) filmsByPersons(ctx context.Context, personIDs []uuid.UUID) ([]EntityRef, error) {
	refs, err := retry.Do(ctx, r.policy, "extract.person_filmworks", func(ctx context.Context) ([]EntityRef, error) {
		rows, err := r.queries.ListFilmworkIDsByPersons(ctx, personIDs)
		if err != nil {
			return nil, err
		}
		refs := make([]EntityRef, 0, len(rows))
		for _, row := range rows {
			refs = append(refs, EntityRef{ID: row.ID, Modified: row.Modified})
		}
		return refs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve films of modified persons: %w", err)
	}
	return refs, nil
}

func (r *reader) filmsByGenres(ctx context.Context, genreIDs []uuid.UUID) ([]EntityRef, error) {
	refs, err := retry.Do(ctx, r.policy, "extract.genre_filmworks", func(ctx context.Context) ([]EntityRef, error) {
		rows, err := r.queries.ListFilmworkIDsByGenres(ctx, genreIDs)
		if err != nil {
			return nil, err
		}
		refs := make([]EntityRef, 0, len(rows))
		for _, row := range rows {
			refs = append(refs, EntityRef{ID: row.ID, Modified: row.Modified})
		}
		return refs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve films of modified genres: %w", err)
	}
	return refs, nil
}

func (r *reader) details(ctx context.Context, filmIDs []uuid.UUID) ([]document.JoinRow, error) {
	rows, err := retry.Do(ctx, r.policy, "extract.details", func(ctx context.Context) ([]sqlc.ListFilmworkDetailsRow, error) {
		return r.queries.ListFilmworkDetails(ctx, filmIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch film details: %w", err)
	}

	out := make([]document.JoinRow, 0, len(rows))
	for i := range rows {
		jr, err := toJoinRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, jr)
	}
	return out, nil
}

// toJoinRow converts a detail row, rejecting shapes the LEFT JOINs cannot produce
func toJoinRow(row *sqlc.ListFilmworkDetailsRow) (document.JoinRow, error) {
	if row.FwID == uuid.Nil {
		return document.JoinRow{}, fmt.Errorf("%w: film without id", ErrMalformedRow)
	}
	if row.PersonID.Valid != row.FullName.Valid {
		return document.JoinRow{}, fmt.Errorf("%w: film %s has a partial person credit", ErrMalformedRow, row.FwID)
	}
	if row.PersonID.Valid && !row.Role.Valid {
		return document.JoinRow{}, fmt.Errorf("%w: film %s credits person %s without role",
			ErrMalformedRow, row.FwID, row.PersonID.UUID)
	}

	jr := document.JoinRow{FilmworkID: row.FwID}
	if row.Title.Valid {
		jr.Title = &row.Title.String
	}
	if row.Description.Valid {
		jr.Description = &row.Description.String
	}
	if row.Rating.Valid {
		jr.Rating = &row.Rating.Float64
	}
	if row.PersonID.Valid {
		jr.PersonID = row.PersonID.UUID
		jr.PersonName = row.FullName.String
		jr.Role = row.Role.String
	}
	if row.Genre.Valid {
		jr.Genre = row.Genre.String
	}
	return jr, nil
}

// impactSet keeps film ids unique in first-seen order
type impactSet struct {
	ids  []uuid.UUID
	seen map[uuid.UUID]struct{}
}

func newImpactSet() *impactSet {
	return &impactSet{seen: make(map[uuid.UUID]struct{})}
}

func (s *impactSet) add(refs []EntityRef) {
	for _, ref := range refs {
		if _, ok := s.seen[ref.ID]; ok {
			continue
		}
		s.seen[ref.ID] = struct{}{}
		s.ids = append(s.ids, ref.ID)
	}
}

func ids(refs []EntityRef) []uuid.UUID {
	out := make([]uuid.UUID, len(refs))
	for i, ref := range refs {
		out[i] = ref.ID
	}
	return out
}

func maxModified(refs []EntityRef) (time.Time, bool) {
	var latest time.Time
	for _, ref := range refs {
		if ref.Modified.After(latest) {
			latest = ref.Modified
		}
	}
	return latest, len(refs) > 0
}
