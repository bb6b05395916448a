// Package testkit provides store fixtures for tests: a pgxmock-backed
// PostgreSQL sandbox and a migrated SQLite store in a temporary directory.
//
// Neither helper touches the network, so handler and store tests run
// quickly within CI.
package testkit
