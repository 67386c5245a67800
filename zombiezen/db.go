package zombiezen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/caasmo/acmeconfig"
	"github.com/caasmo/acmeconfig/tomlconf"
)

// ErrNoSnapshot is returned by Latest when nothing was archived yet.
var ErrNoSnapshot = errors.New("db: no configuration snapshot found")

const timeFormat = "2006-01-02T15:04:05Z"

const schema = `
CREATE TABLE IF NOT EXISTS acme_config_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);`

// Snapshot is one archived configuration version.
type Snapshot struct {
	ID          int64
	Config      *acme.Config
	Description string
	CreatedAt   time.Time
}

// Db archives published configurations in sqlite, giving a history to
// restore a last-known-good version from. It implements reload.Archiver.
type Db struct {
	pool *sqlitex.Pool
	now  func() time.Time
}

// New creates a Db on a pool created and closed by the caller.
func New(pool *sqlitex.Pool) *Db {
	if pool == nil {
		panic("zombiezen.New: received nil pool")
	}
	return &Db{pool: pool, now: time.Now}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (d *Db) EnsureSchema(ctx context.Context) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("db: failed to create schema: %w", err)
	}
	return nil
}

// Archive stores cfg as TOML.
func (d *Db) Archive(cfg *acme.Config, description string) error {
	content, err := tomlconf.Marshal(cfg)
	if err != nil {
		return err
	}

	conn, err := d.pool.Take(context.TODO())
	if err != nil {
		return fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO acme_config_snapshots (content, description, created_at) VALUES (?, ?, ?);`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(content),
				description,
				d.now().UTC().Format(timeFormat),
			},
		})
	if err != nil {
		return fmt.Errorf("db: failed to insert configuration snapshot %q: %w", description, err)
	}
	return nil
}

// Latest returns the most recently archived snapshot.
func (d *Db) Latest(ctx context.Context) (*Snapshot, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("db: failed to get connection: %w", err)
	}
	defer d.pool.Put(conn)

	var (
		snap    *Snapshot
		content string
		created string
	)
	err = sqlitex.Execute(conn,
		`SELECT id, content, description, created_at FROM acme_config_snapshots ORDER BY id DESC LIMIT 1;`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				snap = &Snapshot{
					ID:          stmt.ColumnInt64(0),
					Description: stmt.ColumnText(2),
				}
				content = stmt.ColumnText(1)
				created = stmt.ColumnText(3)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("db: failed to query latest configuration snapshot: %w", err)
	}
	if snap == nil {
		return nil, ErrNoSnapshot
	}

	if snap.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return nil, fmt.Errorf("db: snapshot %d: bad created_at %q: %w", snap.ID, created, err)
	}
	if snap.Config, err = tomlconf.Decode([]byte(content)); err != nil {
		return nil, fmt.Errorf("db: snapshot %d: %w", snap.ID, err)
	}
	return snap, nil
}
