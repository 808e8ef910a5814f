package model

// Writer persists the output of a pipeline stage.
type Writer interface {
	// Write takes a stage payload and persists it.
	// The implementation is expected to know how to handle the payload type it receives
	// (*AggregationResult for the aggregation stage, *AnalysisReport for the analysis stage).
	Write(payload interface{}) error

	// Kind returns the registry name of the writer, e.g. "csv" or "clickhouse".
	Kind() string

	// Close releases connections held by the writer.
	Close() error
}

// Committer is implemented by writers that hold their output back until every writer
// of the stage has succeeded, such as database inserts.
type Committer interface {
	Commit() error
}
