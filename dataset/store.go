package dataset

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/tumorsnap/codec"
	"github.com/pthm-cable/tumorsnap/lattice"
)

// FormatVersion is incremented when the persisted layout changes.
const FormatVersion = 1

// DefaultMaxBlobBytes matches sqlite's default SQLITE_MAX_LENGTH.
const DefaultMaxBlobBytes = 1_000_000_000

// Mode selects which cell fields are persisted.
type Mode string

const (
	ModeFull   Mode = "full"   // population, type, volume, cycle
	ModeStates Mode = "states" // population and type only
)

// ErrBlobTooLarge is returned when one snapshot payload exceeds the store's
// blob limit.
var ErrBlobTooLarge = errors.New("payload exceeds blob limit")

// Store persists datasets to a single sqlite file.
type Store struct {
	path    string
	maxBlob int
	db      *sql.DB
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxBlobBytes caps the size of any single payload.
func WithMaxBlobBytes(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxBlob = n
		}
	}
}

// OpenStore opens (creating if needed) the sqlite file at path.
func OpenStore(ctx context.Context, path string, opts ...StoreOption) (*Store, error) {
	if path == "" {
		return nil, errors.New("dataset path is required")
	}
	s := &Store{path: path, maxBlob: DefaultMaxBlobBytes}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dataset store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open dataset store: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS coords (idx INTEGER PRIMARY KEY, u INTEGER NOT NULL, v INTEGER NOT NULL, w INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS agents (
			seed_index INTEGER NOT NULL,
			time_index INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (seed_index, time_index)
		)`,
		`CREATE TABLE IF NOT EXISTS environments (
			species TEXT NOT NULL,
			seed_index INTEGER NOT NULL,
			time_index INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (species, seed_index, time_index)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create dataset tables: %w", err)
		}
	}
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored dataset with d in one transaction. A failed save
// leaves the previous contents untouched.
func (s *Store) Save(ctx context.Context, d *Dataset, mode Mode) error {
	if mode != ModeFull && mode != ModeStates {
		return fmt.Errorf("unknown persist mode %q", mode)
	}
	if mode == ModeFull && d.StatesOnly {
		return errors.New("cannot persist a states-only dataset in full mode")
	}
	setupJSON, err := json.Marshal(d.Setup)
	if err != nil {
		return fmt.Errorf("marshal setup: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"meta", "coords", "agents", "environments"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	meta := map[string]string{
		"format_version": strconv.Itoa(FormatVersion),
		"mode":           string(mode),
		"setup":          string(setupJSON),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}

	for i, c := range d.Setup.Coords {
		if _, err := tx.ExecContext(ctx, `INSERT INTO coords (idx, u, v, w) VALUES (?, ?, ?, ?)`, i, c.U, c.V, c.W); err != nil {
			return fmt.Errorf("write coordinate %d: %w", i, err)
		}
	}

	agentStmt, err := tx.PrepareContext(ctx, `INSERT INTO agents (seed_index, time_index, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare agents: %w", err)
	}
	defer agentStmt.Close()
	envStmt, err := tx.PrepareContext(ctx, `INSERT INTO environments (species, seed_index, time_index, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare environments: %w", err)
	}
	defer envStmt.Close()

	for si := range d.Setup.Seeds {
		for ti := range d.Setup.Times {
			payload := encodeCells(d.Snapshot(si, ti).Cells, mode)
			if err := s.checkBlob("agents", d.Setup.Seeds[si], ti, payload); err != nil {
				return err
			}
			if _, err := agentStmt.ExecContext(ctx, si, ti, payload); err != nil {
				return fmt.Errorf("write agents seed %d time %d: %w", d.Setup.Seeds[si], ti, err)
			}
			for _, name := range d.Setup.Species {
				grid, err := d.Environment(name, si, ti)
				if err != nil {
					return err
				}
				payload := encodeFloats(grid)
				if err := s.checkBlob(name, d.Setup.Seeds[si], ti, payload); err != nil {
					return err
				}
				if _, err := envStmt.ExecContext(ctx, name, si, ti, payload); err != nil {
					return fmt.Errorf("write %s seed %d time %d: %w", name, d.Setup.Seeds[si], ti, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *Store) checkBlob(what string, seed, ti int, payload []byte) error {
	if len(payload) > s.maxBlob {
		return fmt.Errorf("%s seed %d time %d: %w (%d > %d bytes)", what, seed, ti, ErrBlobTooLarge, len(payload), s.maxBlob)
	}
	return nil
}

// Load reads the stored dataset.
func (s *Store) Load(ctx context.Context) (*Dataset, error) {
	meta := make(map[string]string)
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read meta: %w", err)
		}
		meta[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}

	if meta["format_version"] != strconv.Itoa(FormatVersion) {
		return nil, fmt.Errorf("unsupported dataset format version %q", meta["format_version"])
	}
	mode := Mode(meta["mode"])
	if mode != ModeFull && mode != ModeStates {
		return nil, fmt.Errorf("unknown persist mode %q", mode)
	}
	var setup Setup
	if err := json.Unmarshal([]byte(meta["setup"]), &setup); err != nil {
		return nil, fmt.Errorf("parse setup: %w", err)
	}
	if setup.Coords, err = s.loadCoords(ctx); err != nil {
		return nil, err
	}

	d, err := New(setup)
	if err != nil {
		return nil, err
	}
	d.StatesOnly = mode == ModeStates

	if err := s.loadAgents(ctx, d, mode); err != nil {
		return nil, err
	}
	if err := s.loadEnvironments(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) loadCoords(ctx context.Context) ([]lattice.Coord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT u, v, w FROM coords ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("read coords: %w", err)
	}
	defer rows.Close()
	var coords []lattice.Coord
	for rows.Next() {
		var c lattice.Coord
		if err := rows.Scan(&c.U, &c.V, &c.W); err != nil {
			return nil, fmt.Errorf("read coords: %w", err)
		}
		coords = append(coords, c)
	}
	return coords, rows.Err()
}

func (s *Store) loadAgents(ctx context.Context, d *Dataset, mode Mode) error {
	rows, err := s.db.QueryContext(ctx, `SELECT seed_index, time_index, payload FROM agents`)
	if err != nil {
		return fmt.Errorf("read agents: %w", err)
	}
	defer rows.Close()
	seen := 0
	for rows.Next() {
		var si, ti int
		var payload []byte
		if err := rows.Scan(&si, &ti, &payload); err != nil {
			return fmt.Errorf("read agents: %w", err)
		}
		if si < 0 || si >= len(d.Setup.Seeds) || ti < 0 || ti >= len(d.Setup.Times) {
			return fmt.Errorf("agents row (%d, %d) outside dataset shape", si, ti)
		}
		if err := decodeCells(payload, d.Snapshot(si, ti).Cells, mode); err != nil {
			return fmt.Errorf("agents seed index %d time %d: %w", si, ti, err)
		}
		seen++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read agents: %w", err)
	}
	if want := len(d.Setup.Seeds) * len(d.Setup.Times); seen != want {
		return fmt.Errorf("dataset has %d agent snapshots, want %d", seen, want)
	}
	return nil
}

func (s *Store) loadEnvironments(ctx context.Context, d *Dataset) error {
	rows, err := s.db.QueryContext(ctx, `SELECT species, seed_index, time_index, payload FROM environments`)
	if err != nil {
		return fmt.Errorf("read environments: %w", err)
	}
	defer rows.Close()
	seen := make(map[string]int, len(d.Setup.Species))
	for rows.Next() {
		var name string
		var si, ti int
		var payload []byte
		if err := rows.Scan(&name, &si, &ti, &payload); err != nil {
			return fmt.Errorf("read environments: %w", err)
		}
		if si < 0 || si >= len(d.Setup.Seeds) || ti < 0 || ti >= len(d.Setup.Times) {
			return fmt.Errorf("environment row (%d, %d) outside dataset shape", si, ti)
		}
		grid, err := d.Environment(name, si, ti)
		if err != nil {
			return err
		}
		if err := decodeFloats(payload, grid); err != nil {
			return fmt.Errorf("%s seed index %d time %d: %w", name, si, ti, err)
		}
		seen[name]++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read environments: %w", err)
	}
	want := len(d.Setup.Seeds) * len(d.Setup.Times)
	for _, name := range d.Setup.Species {
		if seen[name] != want {
			return fmt.Errorf("dataset has %d %s grids, want %d", seen[name], name, want)
		}
	}
	return nil
}

// PersistOptions controls Persist.
type PersistOptions struct {
	MaxBlobBytes       int
	StatesOnlyFallback bool
}

// Persist writes d to path in full mode. If that fails and the fallback is
// enabled, it writes a states-only artifact instead so the run's cell
// states survive. The returned mode reports what was written.
func Persist(ctx context.Context, path string, d *Dataset, opts PersistOptions) (Mode, error) {
	st, err := OpenStore(ctx, path, WithMaxBlobBytes(opts.MaxBlobBytes))
	if err != nil {
		return "", err
	}
	defer st.Close()

	mode := ModeFull
	if d.StatesOnly {
		mode = ModeStates
	}
	err = st.Save(ctx, d, mode)
	if err == nil {
		return mode, nil
	}
	if mode == ModeStates || !opts.StatesOnlyFallback {
		return "", fmt.Errorf("persist dataset: %w", err)
	}

	slog.Warn("full dataset persist failed, writing states-only artifact",
		"path", path,
		"error", err,
	)
	if err := st.Save(ctx, d, ModeStates); err != nil {
		return "", fmt.Errorf("persist states-only dataset: %w", err)
	}
	return ModeStates, nil
}

// LoadFile opens path and loads its dataset.
func LoadFile(ctx context.Context, path string) (*Dataset, error) {
	st, err := OpenStore(ctx, path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Load(ctx)
}

// Cell payloads are little-endian: int8 population, int8 type, and in full
// mode int16 volume, int16 cycle.
func cellWidth(mode Mode) int {
	if mode == ModeStates {
		return 2
	}
	return 6
}

func encodeCells(cells []codec.Cell, mode Mode) []byte {
	w := cellWidth(mode)
	buf := make([]byte, len(cells)*w)
	for i, c := range cells {
		b := buf[i*w:]
		b[0] = byte(c.Population)
		b[1] = byte(c.Type)
		if mode == ModeFull {
			binary.LittleEndian.PutUint16(b[2:], uint16(c.Volume))
			binary.LittleEndian.PutUint16(b[4:], uint16(c.Cycle))
		}
	}
	return buf
}

func decodeCells(payload []byte, dst []codec.Cell, mode Mode) error {
	w := cellWidth(mode)
	if len(payload) != len(dst)*w {
		return fmt.Errorf("payload has %d bytes, want %d", len(payload), len(dst)*w)
	}
	for i := range dst {
		b := payload[i*w:]
		c := codec.Cell{
			Population: int8(b[0]),
			Type:       int8(b[1]),
			Volume:     codec.Sentinel,
			Cycle:      codec.Sentinel,
		}
		if mode == ModeFull {
			c.Volume = int16(binary.LittleEndian.Uint16(b[2:]))
			c.Cycle = int16(binary.LittleEndian.Uint16(b[4:]))
		}
		dst[i] = c
	}
	return nil
}

func encodeFloats(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeFloats(payload []byte, dst []float32) error {
	if len(payload) != 4*len(dst) {
		return fmt.Errorf("payload has %d bytes, want %d", len(payload), 4*len(dst))
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
	}
	return nil
}
