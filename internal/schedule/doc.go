// Package schedule resolves calendar dates for weekly broadcast templates and
// expands them into concrete occurrences. Everything here is pure.
package schedule
