// Package sqlc holds the typed queries over the content schema.
// Everything except this file is generated from database/queries by sqlc.
package sqlc

//go:generate mockgen -destination=mocks/mock_querier.go -package=mocks github.com/stacklok/movies-etl/internal/db/sqlc Querier
