// Package storage is the occurrence ledger: a record of every broadcast the
// scheduler created, plus an audit trail of command runs.
//
// Drivers: file (JSON Lines), sqlite, redis and postgres. The ledger is
// optional; Open returns (nil, nil) when it is disabled.
package storage
