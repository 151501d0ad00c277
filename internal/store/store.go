// Package store persists BCF assets on disk. Payloads live as
// zstd-compressed files under objects/; an SQLite database carries the
// index (names, digests, sizes, tree stats) for listing and lookup.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"voxelforge.dev/internal/bcf"
)

var (
	ErrNotFound = errors.New("store: asset not found")
	ErrBadName  = errors.New("store: invalid asset name")
	ErrCorrupt  = errors.New("store: asset corrupted on disk")
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// AssetInfo is one index row.
type AssetInfo struct {
	Name           string
	Path           string
	SHA256         string
	RawSize        int64
	CompressedSize int64
	RootOffset     int
	MaxDepth       int
	CreatedAt      string
}

type Store struct {
	dir string
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open creates or opens a store rooted at dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: empty dir")
	}
	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
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

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		_ = db.Close()
		return nil, err
	}

	return &Store{dir: dir, db: db, enc: enc, dec: dec}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS assets (
			name TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			raw_size INTEGER NOT NULL,
			compressed_size INTEGER NOT NULL,
			root_offset INTEGER NOT NULL,
			max_depth INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

// Put validates, compresses and indexes a BCF payload under name,
// replacing any existing asset with that name.
func (s *Store) Put(name string, data []byte) (AssetInfo, error) {
	if !nameRe.MatchString(name) {
		return AssetInfo{}, fmt.Errorf("%w: %q", ErrBadName, name)
	}

	// Full structural validation before anything touches disk.
	root, err := bcf.Unmarshal(data)
	if err != nil {
		return AssetInfo{}, err
	}
	header, err := bcf.NewReader(data).ReadHeader()
	if err != nil {
		return AssetInfo{}, err
	}

	sum := sha256.Sum256(data)
	compressed := s.enc.EncodeAll(data, nil)
	relPath := filepath.Join("objects", name+".bcf.zst")

	info := AssetInfo{
		Name:           name,
		Path:           relPath,
		SHA256:         hex.EncodeToString(sum[:]),
		RawSize:        int64(len(data)),
		CompressedSize: int64(len(compressed)),
		RootOffset:     header.RootOffset,
		MaxDepth:       root.MaxDepth(),
		CreatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}

	absPath := filepath.Join(s.dir, relPath)
	if err := os.WriteFile(absPath, compressed, 0o644); err != nil {
		return AssetInfo{}, err
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO assets(name,path,sha256,raw_size,compressed_size,root_offset,max_depth,created_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		info.Name, info.Path, info.SHA256, info.RawSize, info.CompressedSize,
		info.RootOffset, info.MaxDepth, info.CreatedAt,
	)
	if err != nil {
		// Unindexed object files are unreachable; don't leave them behind.
		_ = os.Remove(absPath)
		return AssetInfo{}, err
	}
	return info, nil
}

// Get returns the raw BCF payload for name, verifying the stored
// digest on the way out.
func (s *Store) Get(name string) ([]byte, error) {
	info, err := s.Info(name)
	if err != nil {
		return nil, err
	}

	compressed, err := os.ReadFile(filepath.Join(s.dir, info.Path))
	if err != nil {
		return nil, err
	}
	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != info.SHA256 {
		return nil, fmt.Errorf("%w: %s: digest mismatch", ErrCorrupt, name)
	}
	return data, nil
}

// Info returns the index row for name.
func (s *Store) Info(name string) (AssetInfo, error) {
	row := s.db.QueryRow(
		`SELECT name,path,sha256,raw_size,compressed_size,root_offset,max_depth,created_at
		 FROM assets WHERE name = ?`, name)

	var info AssetInfo
	err := row.Scan(&info.Name, &info.Path, &info.SHA256, &info.RawSize,
		&info.CompressedSize, &info.RootOffset, &info.MaxDepth, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AssetInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return AssetInfo{}, err
	}
	return info, nil
}

// List returns all assets ordered by name.
func (s *Store) List() ([]AssetInfo, error) {
	rows, err := s.db.Query(
		`SELECT name,path,sha256,raw_size,compressed_size,root_offset,max_depth,created_at
		 FROM assets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssetInfo
	for rows.Next() {
		var info AssetInfo
		if err := rows.Scan(&info.Name, &info.Path, &info.SHA256, &info.RawSize,
			&info.CompressedSize, &info.RootOffset, &info.MaxDepth, &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes an asset from the index and from disk.
func (s *Store) Delete(name string) error {
	info, err := s.Info(name)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM assets WHERE name = ?`, name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, info.Path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
