package sonicmatch

import (
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/storage"
)

var _ Storage = (*storage.DBClient)(nil)

// NewSQLiteStorage opens the SQLite reference library at dbPath. An empty
// path falls back to SONIC_DB_PATH, then to the default file.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	open := func() (*storage.DBClient, error) { return storage.NewDBClientWithPath(dbPath) }
	if dbPath == "" {
		open = storage.NewDBClient
	}
	db, err := open()
	if err != nil {
		return nil, err
	}
	return db, nil
}
