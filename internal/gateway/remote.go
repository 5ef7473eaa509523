package gateway

import (
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// OpenRemote connects to a hosted libSQL (Turso) database. The returned
// DB shares all query code with the embedded variant; only the driver
// differs.
//
// url has the form libsql://<name>.turso.io; authToken may be empty for
// unauthenticated local sqld instances.
func OpenRemote(url, authToken string) (*DB, error) {
	dsn := url
	if authToken != "" {
		dsn = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	conn, err := openSQL("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}

	// Remote connections skip the WAL pragmas; the server owns its
	// journal mode. path stays empty so Close skips the checkpoint.
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn}, nil
}
