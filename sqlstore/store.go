// Package sqlstore implements the oauthstore contract on a SQL database.
// One implementation covers SQLite, MySQL and PostgreSQL; per-driver
// differences (placeholders, DDL, unique-violation detection) are isolated
// in the dialect.
package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tandemlab/oauthstore"
	"github.com/tandemlab/oauthstore/internal/logx"
)

const (
	// DefaultMaxTimestampSkew bounds how far an incoming nonce timestamp may
	// lag the newest one seen for the same consumer key and token.
	DefaultMaxTimestampSkew = 10 * time.Minute

	// DefaultRequestTokenTTL is the lifetime of freshly minted request tokens.
	DefaultRequestTokenTTL = time.Hour
)

// Options configures a Store. Either reuse an existing handle via DB, or
// let Open create one from DSN (or from the discrete Server/Username/
// Password/Database fields). Driver is always required: it selects the
// SQL dialect.
type Options struct {
	// Driver is one of "sqlite", "mysql" or "postgres".
	Driver string

	// DB, when non-nil, is an existing handle to reuse. The store will not
	// close it.
	DB *sql.DB

	// DSN is the driver-specific data source name used when DB is nil.
	DSN string

	// Discrete connection fields, used when DB is nil and DSN is empty.
	Server   string
	Username string
	Password string
	Database string

	MaxTimestampSkew time.Duration
	RequestTokenTTL  time.Duration
}

// Store is a SQL-backed oauthstore.Store. It holds a single database
// handle for its lifetime; pooling is the driver's concern.
type Store struct {
	db      *sql.DB
	dialect dialect
	ownsDB  bool

	maxSkew    int64 // seconds
	requestTTL time.Duration

	// now is the clock for TTL comparisons and nonce windows; tests
	// override it.
	now func() time.Time
}

var _ oauthstore.Store = (*Store)(nil)

// Open connects to (or attaches to) the database and runs migrations.
func Open(opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	db := opts.DB
	owns := false
	if db == nil {
		dsn, err := d.dsn(opts)
		if err != nil {
			return nil, err
		}
		db, err = sql.Open(d.driverName(), dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		owns = true
	}

	s := &Store{
		db:         db,
		dialect:    d,
		ownsDB:     owns,
		maxSkew:    int64(DefaultMaxTimestampSkew / time.Second),
		requestTTL: DefaultRequestTokenTTL,
		now:        time.Now,
	}
	if opts.MaxTimestampSkew > 0 {
		s.maxSkew = int64(opts.MaxTimestampSkew / time.Second)
	}
	if opts.RequestTokenTTL > 0 {
		s.requestTTL = opts.RequestTokenTTL
	}

	// SQLite pragmas are per-connection and a :memory: database exists per
	// connection; a single pooled connection keeps both consistent.
	if owns && d.name() == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range d.setup() {
		if _, err := db.Exec(stmt); err != nil {
			s.closeOwn()
			return nil, fmt.Errorf("setup: %w", backendErr(stmt, err))
		}
	}
	if err := s.migrate(); err != nil {
		s.closeOwn()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logx.Debugf("sqlstore: %s backend ready (skew=%ds, request ttl=%s)", d.name(), s.maxSkew, s.requestTTL)
	return s, nil
}

// Close releases the database handle if this store opened it.
func (s *Store) Close() error {
	return s.closeOwn()
}

func (s *Store) closeOwn() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate() error {
	for _, stmt := range s.dialect.ddl() {
		if _, err := s.db.Exec(stmt); err != nil {
			return backendErr(stmt, err)
		}
	}
	return nil
}

// infiniteTTL is the stored expiry of tokens that never expire.
var infiniteTTL = oauthstore.TTLInfinite.Unix()

func (s *Store) unixNow() int64 { return s.now().Unix() }

// ttlUnix converts a relative TTL to a stored absolute expiry; zero means
// never expires.
func (s *Store) ttlUnix(ttl time.Duration) int64 {
	if ttl <= 0 {
		return infiniteTTL
	}
	return s.now().Add(ttl).Unix()
}

func unixTime(v int64) time.Time { return time.Unix(v, 0).UTC() }

// q rebinds '?' placeholders for the active dialect.
func (s *Store) q(query string) string { return s.dialect.rebind(query) }

func backendErr(stmt string, err error) error {
	return &oauthstore.BackendError{Stmt: compactSQL(stmt), Err: err}
}

// compactSQL collapses statement whitespace so BackendError stays a single
// log line.
func compactSQL(stmt string) string {
	return strings.Join(strings.Fields(stmt), " ")
}

// nullableID adapts *int64 owner columns for scanning and binding.
func nullableID(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
