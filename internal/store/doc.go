// Package store persists the ordered project list and the project event
// history in a SQLite database (modernc.org/sqlite, no cgo).
package store
