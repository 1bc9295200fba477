// Package pgstore is the Postgres backend of the media catalog, built on a
// pgx connection pool. Face embeddings are stored in a pgvector column so
// the same catalog can later serve nearest-neighbour queries.
//
// The schema mirrors the SQLite backend in package database and is created
// on first connect.
package pgstore
