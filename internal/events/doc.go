// Package events carries project notifications from the coordinator to any
// number of observers (CLI output, store recorder, NATS bridge, tests).
//
// Every event implements ProjectEvent. Ordering per project is the order in
// which the coordinator emitted them: the coordinator appends to an Outbox and
// a single drain goroutine publishes to the Bus.
package events
