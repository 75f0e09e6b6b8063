package config

// ObjectStore defines config settings for gofer's ObjectStore. The ObjectStore holds temporary
// objects set by pipelines and runs.
type ObjectStore struct {
	// The ObjectStore engine used by the backend.
	// Possible values are: sqlite
	Engine string `hcl:"engine,optional"`

	Sqlite *Sqlite `hcl:"sqlite,block"`

	// Pipeline objects last forever but are limited in number. This is the total amount of
	// items that can be stored per pipeline before gofer starts deleting the oldest.
	PipelineObjectLimit int `split_words:"true" hcl:"pipeline_object_limit,optional"`

	// Objects stored at the run level are unlimited in number, but only last for a certain
	// number of runs. The number below controls how many runs until the run objects for the
	// oldest run will be deleted. Ex. an object stored on run #5 with an expiry of 2 will be
	// deleted on run #7 regardless of run health.
	RunObjectExpiry int `split_words:"true" hcl:"run_object_expiry,optional"`
}

// Sqlite is the connection settings for the sqlite-backed ObjectStore engine.
type Sqlite struct {
	Path string `hcl:"path,optional"` // file path for the database file
}

func DefaultObjectStoreConfig() *ObjectStore {
	return &ObjectStore{
		Engine: "sqlite",
		Sqlite: &Sqlite{
			Path: "/tmp/gofer-objects.db",
		},
		PipelineObjectLimit: 10,
		RunObjectExpiry:     20,
	}
}
