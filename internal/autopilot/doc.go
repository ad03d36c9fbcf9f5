// Package autopilot keeps the broadcast calendar topped up without an
// operator. On every trigger it provisions the next Horizon occurrences of
// each active template, skipping the ones the ledger already holds, then
// exports what it created.
//
// Run hosts the cron runner, the template and config watchers and the
// systemd watchdog under one supervisor.
package autopilot
