// Package integration provides end-to-end tests of the movies ETL against a real
// PostgreSQL container and an in-process Elasticsearch stand-in.
package integration
