package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Faultbox/voxelmesh/pkg/formats"
	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

const sqliteBackend = "sqlite"

// SQLiteStore keeps encoded grids as blobs in a single table keyed by zone.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, opts Options) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, opts: opts}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS zones (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL,
		data BLOB NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (x, y, z)
	);`)
	return err
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, zone voxel.Zone, g *voxel.Grid) (err error) {
	defer func() { instrument(sqliteBackend, "save", err) }()

	var buf bytes.Buffer
	if s.opts.Compress {
		err = formats.EncodeGridCompressed(&buf, g)
	} else {
		err = formats.EncodeGrid(&buf, g)
	}
	if err != nil {
		return fmt.Errorf("encoding zone %s: %w", zone, err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO zones (x, y, z, data, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (x, y, z) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		zone.X, zone.Y, zone.Z, buf.Bytes(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving zone %s: %w", zone, err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, zone voxel.Zone) (g *voxel.Grid, err error) {
	defer func() { instrument(sqliteBackend, "load", err) }()

	var data []byte
	err = s.db.QueryRowContext(ctx, `SELECT data FROM zones WHERE x = ? AND y = ? AND z = ?`,
		zone.X, zone.Y, zone.Z).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, zone)
	}
	if err != nil {
		return nil, fmt.Errorf("loading zone %s: %w", zone, err)
	}

	g, err = formats.ParseGrid(data, s.opts.Decode)
	if err != nil {
		return nil, fmt.Errorf("decoding zone %s: %w", zone, err)
	}
	return g, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, zone voxel.Zone) (err error) {
	defer func() { instrument(sqliteBackend, "delete", err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM zones WHERE x = ? AND y = ? AND z = ?`,
		zone.X, zone.Y, zone.Z)
	if err != nil {
		return fmt.Errorf("deleting zone %s: %w", zone, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zone)
	}
	return nil
}

// List implements Store. Zones are returned in x, y, z order.
func (s *SQLiteStore) List(ctx context.Context) (zones []voxel.Zone, err error) {
	defer func() { instrument(sqliteBackend, "list", err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT x, y, z FROM zones ORDER BY x, y, z`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var z voxel.Zone
		if err := rows.Scan(&z.X, &z.Y, &z.Z); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
