package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "modernc.org/sqlite"             // sqlite driver
)

// objectStatisticsQuery counts stored RPSL objects per source and class.
// Pairs without objects produce no row, matching the exposition contract.
const objectStatisticsQuery = `
	SELECT source, object_class, COUNT(*) AS count
	FROM rpsl_objects
	GROUP BY source, object_class
`

// sourceStatusQuery reads the per-source mirroring state maintained by the
// IRRd daemon. Every column besides source is nullable.
const sourceStatusQuery = `
	SELECT source, updated, last_error_timestamp,
	       serial_newest_mirror, serial_last_export,
	       serial_oldest_journal, serial_newest_journal
	FROM database_status
`

// SQLStore implements Store on top of database/sql, using the pgx stdlib
// driver for PostgreSQL and modernc sqlite for file-based deployments.
type SQLStore struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// Open connects to the status database described by cfg and verifies the
// connection with a ping. If logger is nil, a discard logger is used.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var driver, dsn string
	switch cfg.Type {
	case "postgres":
		driver = "pgx"
		dsn = buildPostgresDSN(cfg)
	case "sqlite":
		driver = "sqlite"
		dsn = cfg.Path
		if dsn == "" {
			dsn = ":memory:"
		}
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.Type)
	}

	logger.Debug("connecting to status database",
		slog.String("type", cfg.Type), slog.String("database", cfg.Database))

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Type, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Type, err)
	}

	return &SQLStore{db: db, cfg: cfg, logger: logger}, nil
}

// NewFromDB wraps an already-open database handle. Used by tests and by
// callers that manage the pool themselves.
func NewFromDB(db *sql.DB, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLStore{db: db, logger: logger}
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// Conn checks out a single connection from the pool and wraps it in a
// Session. The connection returns to the pool on Close.
func (s *SQLStore) Conn(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return &sqlSession{conn: conn}, nil
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	if s.db != nil {
		s.logger.Debug("closing status database")
		return s.db.Close()
	}
	return nil
}

// sqlSession runs the two status queries on one checked-out connection.
type sqlSession struct {
	conn *sql.Conn
}

func (s *sqlSession) ObjectStatistics(ctx context.Context) ([]ObjectCount, error) {
	rows, err := s.conn.QueryContext(ctx, objectStatisticsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query object statistics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []ObjectCount
	for rows.Next() {
		var c ObjectCount
		if err := rows.Scan(&c.Source, &c.ObjectClass, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan object statistics row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating object statistics: %w", err)
	}

	return counts, nil
}

func (s *sqlSession) SourceStatus(ctx context.Context) ([]SourceStatus, error) {
	rows, err := s.conn.QueryContext(ctx, sourceStatusQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query database status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var statuses []SourceStatus
	for rows.Next() {
		var (
			st        SourceStatus
			updated   sql.NullTime
			lastError sql.NullTime
			mirror    sql.NullInt64
			export    sql.NullInt64
			oldest    sql.NullInt64
			newest    sql.NullInt64
		)
		if err := rows.Scan(&st.Source, &updated, &lastError,
			&mirror, &export, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("failed to scan database status row: %w", err)
		}
		if updated.Valid {
			t := updated.Time
			st.Updated = &t
		}
		if lastError.Valid {
			t := lastError.Time
			st.LastError = &t
		}
		st.SerialNewestMirror = nullableInt(mirror)
		st.SerialLastExport = nullableInt(export)
		st.SerialOldestJournal = nullableInt(oldest)
		st.SerialNewestJournal = nullableInt(newest)
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating database status: %w", err)
	}

	return statuses, nil
}

func (s *sqlSession) Close() error {
	return s.conn.Close()
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
