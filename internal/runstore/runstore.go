// Package runstore records reconstruction runs in a SQLite database so
// budgets, strategies and timings can be compared across inputs.
package runstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/reconstruct"
	"github.com/banshee-data/pointmesh/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("runstore: run not found")

// Run is one recorded reconstruction.
type Run struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	InputPath     string
	OutputPath    string
	Strategy      string
	InputPoints   int
	Budget        int
	SampledPoints int
	Triangles     int
	Rejected      int
	FellBack      bool
	Downsample    time.Duration
	Normals       time.Duration
	Triangulate   time.Duration
	Assemble      time.Duration
	Total         time.Duration
	// ConfigJSON is the effective configuration, as written by the caller.
	ConfigJSON string
}

// NewRun builds a Run from pipeline statistics with a fresh ID. CreatedAt
// is stamped by Store.Insert.
func NewRun(inputPath, outputPath string, st reconstruct.Stats, configJSON string) Run {
	if configJSON == "" {
		configJSON = "{}"
	}
	return Run{
		ID:            uuid.New(),
		InputPath:     inputPath,
		OutputPath:    outputPath,
		Strategy:      st.Strategy.String(),
		InputPoints:   st.InputPoints,
		Budget:        st.Budget,
		SampledPoints: st.SampledPoints,
		Triangles:     st.Triangles,
		Rejected:      st.Rejected,
		FellBack:      st.FellBack,
		Downsample:    st.Downsample,
		Normals:       st.Normals,
		Triangulate:   st.Triangulate,
		Assemble:      st.Assemble,
		Total:         st.Total,
		ConfigJSON:    configJSON,
	}
}

// Store wraps the run database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (or creates) the database at path and migrates it to the
// latest schema. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db, clock: timeutil.RealClock{}}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetClock replaces the clock used to stamp inserted runs.
func (s *Store) SetClock(c timeutil.Clock) {
	s.clock = c
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (uint, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, err
	}
	// Closing m would close the shared *sql.DB.
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("runstore: schema version %d is dirty", version)
	}
	return version, nil
}

func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger forwards golang-migrate output to the diag stream.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Diagf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

const runColumns = `run_id, created_unix_ns, input_path, output_path, strategy,
	input_points, budget, sampled_points, triangles, rejected, fell_back,
	downsample_ms, normals_ms, triangulate_ms, assemble_ms, total_ms, config_json`

// Insert records r. A zero ID is replaced with a new one and a zero
// CreatedAt with the store clock's current time. The stored ID is returned.
func (s *Store) Insert(r Run) (uuid.UUID, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock.Now().UTC()
	}
	if r.ConfigJSON == "" {
		r.ConfigJSON = "{}"
	}
	_, err := s.db.Exec(`INSERT INTO reconstruction_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.CreatedAt.UnixNano(), r.InputPath, r.OutputPath, r.Strategy,
		r.InputPoints, r.Budget, r.SampledPoints, r.Triangles, r.Rejected, boolToInt(r.FellBack),
		r.Downsample.Milliseconds(), r.Normals.Milliseconds(), r.Triangulate.Milliseconds(),
		r.Assemble.Milliseconds(), r.Total.Milliseconds(),
		r.ConfigJSON,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	monitoring.Diagf("runstore: recorded run %s (%s, %d triangles)", r.ID, r.Strategy, r.Triangles)
	return r.ID, nil
}

// Get loads a single run.
func (s *Store) Get(id uuid.UUID) (Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM reconstruction_runs WHERE run_id = ?`, id.String())
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// ListRecent returns up to limit runs, newest first.
func (s *Store) ListRecent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM reconstruction_runs
		ORDER BY created_unix_ns DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                                     Run
		id                                    string
		created                               int64
		fellBack                              int
		downMs, normMs, triMs, asmMs, totalMs int64
	)
	err := sc.Scan(&id, &created, &r.InputPath, &r.OutputPath, &r.Strategy,
		&r.InputPoints, &r.Budget, &r.SampledPoints, &r.Triangles, &r.Rejected, &fellBack,
		&downMs, &normMs, &triMs, &asmMs, &totalMs, &r.ConfigJSON)
	if err != nil {
		return Run{}, err
	}
	r.ID, err = uuid.Parse(id)
	if err != nil {
		return Run{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.FellBack = fellBack != 0
	r.Downsample = time.Duration(downMs) * time.Millisecond
	r.Normals = time.Duration(normMs) * time.Millisecond
	r.Triangulate = time.Duration(triMs) * time.Millisecond
	r.Assemble = time.Duration(asmMs) * time.Millisecond
	r.Total = time.Duration(totalMs) * time.Millisecond
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
