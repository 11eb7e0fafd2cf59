// Package database provides connection pool management for PostgreSQL.
//
// The gateway keeps tenant routing configs, routing decisions and their
// execution outcomes in a single PostgreSQL database.
package database
