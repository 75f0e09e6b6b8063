package config

// Database defines config settings for gofer's storage layer, which persists namespaces,
// pipelines, runs, task executions, and the event log to a local sqlite file.
type Database struct {
	// MaxResultsLimit defines the total number of results storage will return in one call to
	// any list operation.
	MaxResultsLimit int    `split_words:"true" hcl:"max_results_limit,optional"`
	Path            string `hcl:"path,optional"`
}

func DefaultDatabaseConfig() *Database {
	return &Database{
		Path:            "/tmp/gofer.db",
		MaxResultsLimit: 100,
	}
}
