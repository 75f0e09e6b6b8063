package config

// SqliteSecret is the connection settings for the sqlite-backed SecretStore engine.
type SqliteSecret struct {
	Path string `hcl:"path,optional"` // file path for the database file

	// EncryptionKey is a 32-byte key used to encrypt secret values at rest via AES-GCM.
	EncryptionKey string `split_words:"true" hcl:"encryption_key,optional"`
}

// SecretStore defines the configuration for Gofer's secret backend.
type SecretStore struct {
	// The SecretStore engine used by the backend.
	// Possible values are: sqlite
	Engine string `hcl:"engine,optional"`

	Sqlite *SqliteSecret `hcl:"sqlite,block"`
}

func DefaultSecretStoreConfig() *SecretStore {
	return &SecretStore{
		Engine: "sqlite",
		Sqlite: &SqliteSecret{
			Path:          "/tmp/gofer-secrets.db",
			EncryptionKey: "changemechangemechangemechangeme",
		},
	}
}
