package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/movies-etl/internal/checkpoint"
	"github.com/stacklok/movies-etl/internal/db/sqlc"
	"github.com/stacklok/movies-etl/internal/db/sqlc/mocks"
	"github.com/stacklok/movies-etl/internal/retry"
)

var (
	base = time.Date(2021, 6, 16, 20, 14, 9, 0, time.UTC)

	filmA   = uuid.MustParse("00af52ec-9345-4d66-adbe-50eb917f463a")
	filmB   = uuid.MustParse("00e2e781-7af9-4f82-b4e9-14a488a3e184")
	filmC   = uuid.MustParse("01ab9e34-4ceb-4a49-ab9f-4c4b0e8e3d64")
	personP = uuid.MustParse("1d0d8a37-2b4c-4f2d-8a4b-5b1f4c0d4e21")
	genreX  = uuid.MustParse("526769d7-df18-4661-9aa6-49ed24e9dfd8")
)

func fastPolicy() *retry.Policy {
	return &retry.Policy{
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		MaxInterval:     5 * time.Millisecond,
		MaxAttempts:     5,
	}
}

func newTestReader(t *testing.T, q sqlc.Querier) Reader {
	t.Helper()
	r, err := NewReader(q, WithPageSize(50), WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)
	return r
}

func detailRow(film uuid.UUID, title string) sqlc.ListFilmworkDetailsRow {
	return sqlc.ListFilmworkDetailsRow{
		FwID:     film,
		Title:    pgtype.Text{String: title, Valid: true},
		Rating:   pgtype.Float8{Float64: 7.5, Valid: true},
		Type:     "movie",
		Created:  base,
		Modified: base,
		Role:     pgtype.Text{String: "actor", Valid: true},
		PersonID: uuid.NullUUID{UUID: personP, Valid: true},
		FullName: pgtype.Text{String: "Pat Doe", Valid: true},
		Genre:    pgtype.Text{String: "Drama", Valid: true},
	}
}

func TestNewReader_Validation(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)

	tests := []struct {
		name    string
		q       sqlc.Querier
		opts    []Option
		wantErr string
	}{
		{name: "nil querier", q: nil, wantErr: "querier is required"},
		{name: "zero page size", q: q, opts: []Option{WithPageSize(0)}, wantErr: "page size"},
		{name: "nil policy", q: q, opts: []Option{WithRetryPolicy(nil)}, wantErr: "retry policy"},
		{name: "defaults", q: q},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewReader(tt.q, tt.opts...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestExtract_ImpactSet(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)
	ctx := context.Background()

	// Person P appears in films A and B; films B and C were edited directly
	q.EXPECT().ListModifiedPersons(gomock.Any(), sqlc.ListModifiedPersonsParams{PageSize: 50}).
		Return([]sqlc.ListModifiedPersonsRow{{ID: personP, Modified: base.Add(time.Minute)}}, nil)
	q.EXPECT().ListModifiedGenres(gomock.Any(), sqlc.ListModifiedGenresParams{PageSize: 50}).
		Return(nil, nil)
	q.EXPECT().ListModifiedFilmworks(gomock.Any(), sqlc.ListModifiedFilmworksParams{PageSize: 50}).
		Return([]sqlc.ListModifiedFilmworksRow{
			{ID: filmB, Modified: base},
			{ID: filmC, Modified: base.Add(2 * time.Minute)},
		}, nil)
	q.EXPECT().ListFilmworkIDsByPersons(gomock.Any(), []uuid.UUID{personP}).
		Return([]sqlc.ListFilmworkIDsByPersonsRow{
			{ID: filmA, Modified: base.Add(-time.Hour)},
			{ID: filmB, Modified: base},
		}, nil)
	q.EXPECT().ListFilmworkDetails(gomock.Any(), []uuid.UUID{filmB, filmC, filmA}).
		Return([]sqlc.ListFilmworkDetailsRow{
			detailRow(filmB, "B"),
			detailRow(filmC, "C"),
			detailRow(filmA, "A"),
		}, nil)

	ext, err := newTestReader(t, q).Extract(ctx, checkpoint.Watermarks{})
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{filmB, filmC, filmA}, ext.ImpactSet)
	assert.Equal(t, 3, ext.Count())
	assert.Len(t, ext.Rows, 3)
	assert.Equal(t, map[checkpoint.Stream]int{
		checkpoint.StreamPerson:   1,
		checkpoint.StreamGenre:    0,
		checkpoint.StreamFilmwork: 2,
	}, ext.Modified)
}

func TestExtract_GenreImpact(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)

	q.EXPECT().ListModifiedPersons(gomock.Any(), gomock.Any()).Return(nil, nil)
	q.EXPECT().ListModifiedGenres(gomock.Any(), gomock.Any()).
		Return([]sqlc.ListModifiedGenresRow{{ID: genreX, Modified: base}}, nil)
	q.EXPECT().ListModifiedFilmworks(gomock.Any(), gomock.Any()).
		Return([]sqlc.ListModifiedFilmworksRow{{ID: filmA, Modified: base}}, nil)
	q.EXPECT().ListFilmworkIDsByGenres(gomock.Any(), []uuid.UUID{genreX}).
		Return([]sqlc.ListFilmworkIDsByGenresRow{{ID: filmA, Modified: base}, {ID: filmC, Modified: base}}, nil)
	q.EXPECT().ListFilmworkDetails(gomock.Any(), []uuid.UUID{filmA, filmC}).
		Return([]sqlc.ListFilmworkDetailsRow{detailRow(filmA, "A"), detailRow(filmC, "C")}, nil)

	ext, err := newTestReader(t, q).Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{filmA, filmC}, ext.ImpactSet)
}

func TestExtract_Watermarks(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)

	since := checkpoint.Watermarks{
		checkpoint.StreamPerson:   base.Add(-time.Hour),
		checkpoint.StreamGenre:    base.Add(-2 * time.Hour),
		checkpoint.StreamFilmwork: base.Add(-3 * time.Hour),
	}

	q.EXPECT().ListModifiedPersons(gomock.Any(), sqlc.ListModifiedPersonsParams{Since: since[checkpoint.StreamPerson], PageSize: 50}).
		Return(nil, nil)
	q.EXPECT().ListModifiedGenres(gomock.Any(), sqlc.ListModifiedGenresParams{Since: since[checkpoint.StreamGenre], PageSize: 50}).
		Return([]sqlc.ListModifiedGenresRow{
			{ID: genreX, Modified: base.Add(time.Hour)},
		}, nil)
	q.EXPECT().ListModifiedFilmworks(gomock.Any(), sqlc.ListModifiedFilmworksParams{Since: since[checkpoint.StreamFilmwork], PageSize: 50}).
		Return([]sqlc.ListModifiedFilmworksRow{
			{ID: filmA, Modified: base},
			{ID: filmB, Modified: base.Add(time.Minute)},
		}, nil)
	// Films reached through the genre carry a later modified time that must not
	// leak into the filmwork watermark
	q.EXPECT().ListFilmworkIDsByGenres(gomock.Any(), gomock.Any()).
		Return([]sqlc.ListFilmworkIDsByGenresRow{{ID: filmC, Modified: base.Add(5 * time.Hour)}}, nil)
	q.EXPECT().ListFilmworkDetails(gomock.Any(), gomock.Any()).
		Return([]sqlc.ListFilmworkDetailsRow{detailRow(filmA, "A")}, nil)

	ext, err := newTestReader(t, q).Extract(context.Background(), since)
	require.NoError(t, err)

	assert.Equal(t, checkpoint.Watermarks{
		checkpoint.StreamGenre:    base.Add(time.Hour),
		checkpoint.StreamFilmwork: base.Add(time.Minute),
	}, ext.Watermarks)

	// A stream without rows keeps its watermark after the merge
	merged := since.Merge(ext.Watermarks)
	assert.Equal(t, since[checkpoint.StreamPerson], merged[checkpoint.StreamPerson])
	for _, s := range checkpoint.Streams {
		assert.False(t, merged[s].Before(since[s]), "watermark of %s moved backwards", s)
	}
}

func TestExtract_NothingChanged(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)

	q.EXPECT().ListModifiedPersons(gomock.Any(), gomock.Any()).Return(nil, nil)
	q.EXPECT().ListModifiedGenres(gomock.Any(), gomock.Any()).Return(nil, nil)
	q.EXPECT().ListModifiedFilmworks(gomock.Any(), gomock.Any()).Return(nil, nil)
	// No detail or fan-out queries expected

	ext, err := newTestReader(t, q).Extract(context.Background(), checkpoint.Watermarks{})
	require.NoError(t, err)
	assert.Equal(t, 0, ext.Count())
	assert.Empty(t, ext.Rows)
	assert.Empty(t, ext.Watermarks)
}

func TestExtract_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	q := mocks.NewMockQuerier(ctrl)

	connErr := &pgconn.PgError{Code: "08006", Message: "connection failure"}
	gomock.InOrder(
		q.EXPECT().ListModifiedPersons(gomock.Any(), gomock.Any()).Return(nil, connErr),
		q.EXPECT().ListModifiedPersons(gomock.Any(), gomock.Any()).Return(nil, connErr),
		q.EXPECT().ListModifiedPersons(gomock.Any(), gomock.Any()).Return(nil, nil),
	)
	q.EXPECT().ListModifiedGenres(gomock.Any(), gomock.Any()).Return(nil, nil)
	q.EXPECT().ListModifiedFilmworks(gomock.Any(), gomock.Any()).
		Return([]sqlc.ListModifiedFilmworksRow{{ID: filmA, Modified: base}}, nil)
	gomock.InOrder(
		q.EXPECT().ListFilmworkDetails(gomock.Any(), gomock.Any()).Return(nil, connErr),
		q.EXPECT().ListFilmworkDetails(gomock.Any(), gomock.Any()).
			Return([]sqlc.ListFilmworkDetailsRow{detailRow(filmA, "A")}, nil),
	)

	ext, err := newTestReader(t, q).Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{filmA}, ext.ImpactSet)
}

func TestExtract_Errors(t *testing.T) {
	t.Parallel()

	t.Run("query error is not retried", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		q := mocks.NewMockQuerier(ctrl)
		syntaxErr := &pgconn.PgError{Code: "42601", Message: "syntax error"}

		q.EXPECT().ListModifiedPersons(gomock.Any(), gomock.Any()).Return(nil, syntaxErr).Times(1)

		_, err := newTestReader(t, q).Extract(context.Background(), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, syntaxErr)
		assert.NotErrorIs(t, err, retry.ErrExhausted)
	})

	t.Run("connection errors exhaust retries", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		q := mocks.NewMockQuerier(ctrl)

		q.EXPECT().ListModifiedPersons(gomock.Any(), gomock.Any()).
			Return(nil, &pgconn.PgError{Code: "57P01"}).Times(5)

		_, err := newTestReader(t, q).Extract(context.Background(), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, retry.ErrExhausted)
	})

	t.Run("malformed detail row", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		q := mocks.NewMockQuerier(ctrl)

		bad := detailRow(filmA, "A")
		bad.Role = pgtype.Text{}

		q.EXPECT().ListModifiedPersons(gomock.Any(), gomock.Any()).Return(nil, nil)
		q.EXPECT().ListModifiedGenres(gomock.Any(), gomock.Any()).Return(nil, nil)
		q.EXPECT().ListModifiedFilmworks(gomock.Any(), gomock.Any()).
			Return([]sqlc.ListModifiedFilmworksRow{{ID: filmA, Modified: base}}, nil)
		q.EXPECT().ListFilmworkDetails(gomock.Any(), gomock.Any()).
			Return([]sqlc.ListFilmworkDetailsRow{bad}, nil)

		_, err := newTestReader(t, q).Extract(context.Background(), nil)
		require.ErrorIs(t, err, ErrMalformedRow)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		q := mocks.NewMockQuerier(ctrl)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		q.EXPECT().ListModifiedPersons(gomock.Any(), gomock.Any()).Return(nil, context.Canceled).MaxTimes(1)

		_, err := newTestReader(t, q).Extract(ctx, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestToJoinRow(t *testing.T) {
	t.Parallel()

	t.Run("film without credits or genres", func(t *testing.T) {
		t.Parallel()

		jr, err := toJoinRow(&sqlc.ListFilmworkDetailsRow{
			FwID:  filmA,
			Title: pgtype.Text{String: "Lonely", Valid: true},
		})
		require.NoError(t, err)
		assert.Equal(t, filmA, jr.FilmworkID)
		require.NotNil(t, jr.Title)
		assert.Equal(t, "Lonely", *jr.Title)
		assert.Nil(t, jr.Description)
		assert.Nil(t, jr.Rating)
		assert.Equal(t, uuid.Nil, jr.PersonID)
		assert.Empty(t, jr.Genre)
	})

	t.Run("full row", func(t *testing.T) {
		t.Parallel()

		row := detailRow(filmB, "B")
		jr, err := toJoinRow(&row)
		require.NoError(t, err)
		assert.Equal(t, personP, jr.PersonID)
		assert.Equal(t, "Pat Doe", jr.PersonName)
		assert.Equal(t, "actor", jr.Role)
		assert.Equal(t, "Drama", jr.Genre)
		require.NotNil(t, jr.Rating)
		assert.InDelta(t, 7.5, *jr.Rating, 0.0001)
	})

	t.Run("partial person", func(t *testing.T) {
		t.Parallel()

		row := detailRow(filmB, "B")
		row.FullName = pgtype.Text{}
		_, err := toJoinRow(&row)
		require.ErrorIs(t, err, ErrMalformedRow)
	})

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()

		_, err := toJoinRow(&sqlc.ListFilmworkDetailsRow{})
		require.ErrorIs(t, err, ErrMalformedRow)
	})
}
