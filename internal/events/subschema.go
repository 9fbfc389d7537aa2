package events

import "time"

// SubschemaStart is emitted before a sub-query is sent to a subschema.
type SubschemaStart struct {
	Subschema     string
	OperationName string
	URL           string
}

// SubschemaFinish is emitted after a subschema call completes.
type SubschemaFinish struct {
	Subschema     string
	OperationName string
	URL           string
	ErrorCount    int
	Err           error
	Duration      time.Duration
}
