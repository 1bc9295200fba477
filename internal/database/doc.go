// Package database is the SQLite backend of the media catalog.
//
// It stores:
//   - media records, keyed by path
//   - scan sessions
//   - detected faces with their embeddings
//   - face groups and face-to-group memberships
//
// Two database/sql drivers are supported: DriverCGO (mattn/go-sqlite3) and
// DriverPure (modernc.org/sqlite). Both open the file in WAL mode with
// foreign keys enabled. Writes are serialized through a mutex; multi-step
// membership changes run in a single transaction so group counts never
// drift from the membership table.
package database
