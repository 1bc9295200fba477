// Package catalog defines the media catalog's records and the store
// interfaces the scan pipeline and the clustering engine depend on.
//
// Two backends implement Store: the SQLite store in package database and the
// Postgres store in package pgstore.
package catalog
