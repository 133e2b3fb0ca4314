package dbquery

import (
	"context"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xkayo32/pytake-flow/flow"
)

// SQLBackend ejecuta queries contra bases SQL externas del tenant. Un mismo
// backend sirve varios tenants: las conexiones se abren por connection string
// y se cachean. El placeholder de parámetros es el del driver ($1 en postgres,
// ? en mysql/sqlite); la query del nodo ya viene escrita para su motor.
type SQLBackend struct {
	dbType     string
	driverName string

	mu    sync.Mutex
	pools map[string]*sqlx.DB
}

var _ flow.DatabaseBackend = (*SQLBackend)(nil)

func NewPostgresBackend() *SQLBackend {
	return newSQLBackend("postgresql", "postgres")
}

func NewMySQLBackend() *SQLBackend {
	return newSQLBackend("mysql", "mysql")
}

func NewSQLiteBackend() *SQLBackend {
	return newSQLBackend("sqlite", "sqlite3")
}

func newSQLBackend(dbType, driverName string) *SQLBackend {
	return &SQLBackend{
		dbType:     dbType,
		driverName: driverName,
		pools:      make(map[string]*sqlx.DB),
	}
}

func (b *SQLBackend) Type() string {
	return b.dbType
}

func (b *SQLBackend) Query(ctx context.Context, connectionString, query string, params []any) ([]map[string]any, error) {
	db, err := b.pool(connectionString)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryxContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		// drivers devuelven []byte para texto; los flows esperan strings
		for k, v := range row {
			if raw, ok := v.([]byte); ok {
				row[k] = string(raw)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// pool returns a cached connection pool for the connection string, opening a
// small one on first use. Tenant databases are external: keep the footprint
// per database minimal.
func (b *SQLBackend) pool(connectionString string) (*sqlx.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if db, ok := b.pools[connectionString]; ok {
		return db, nil
	}

	db, err := sqlx.Open(b.driverName, connectionString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	b.pools[connectionString] = db
	return db, nil
}

// Close releases every cached pool, for graceful shutdown.
func (b *SQLBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for key, db := range b.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.pools, key)
	}
	return firstErr
}
