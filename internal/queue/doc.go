// Package queue persists video jobs and script records in SQLite and owns
// the job status state machine.
package queue
