// Package history records gate runs so that a plugin's verdicts can be
// compared across builds.
//
// The history location is either a SQLite file path or a postgres:// URL
// for a shared database; DriverFor picks the driver. Queries are written
// with ? placeholders and rebound for PostgreSQL.
package history
