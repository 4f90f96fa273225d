package sqlstore

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tandemlab/oauthstore"
)

// dialect isolates the per-driver differences: DSN construction,
// placeholder style, DDL spelling and unique-violation detection.
// Queries in this package are written with '?' placeholders and rebound.
type dialect interface {
	name() string
	driverName() string
	dsn(opts Options) (string, error)
	rebind(query string) string
	setup() []string
	ddl() []string
	isUniqueViolation(err error) bool
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect{}, nil
	}
	return nil, oauthstore.Errorf(oauthstore.ErrInvalidArgument,
		"unknown driver %q (expected sqlite|mysql|postgres)", driver)
}

type sqliteDialect struct{}

func (sqliteDialect) name() string       { return "sqlite" }
func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) dsn(opts Options) (string, error) {
	if opts.DSN != "" {
		return opts.DSN, nil
	}
	if opts.Database != "" {
		return opts.Database, nil
	}
	return "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "sqlite requires a database path")
}

func (sqliteDialect) rebind(query string) string { return query }

// WAL for multi-process concurrency, foreign keys for the token cascades
// (off by default in SQLite).
func (sqliteDialect) setup() []string {
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
}

func (sqliteDialect) ddl() []string {
	return schemaDDL(strings.NewReplacer(
		"{pk}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{key}", "TEXT",
		"{text}", "TEXT",
		"{server_scope_unique}", "UNIQUE (consumer_key, user_id)",
	), publicServerIndex)
}

func (sqliteDialect) isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

type mysqlDialect struct{}

func (mysqlDialect) name() string       { return "mysql" }
func (mysqlDialect) driverName() string { return "mysql" }

func (mysqlDialect) dsn(opts Options) (string, error) {
	if opts.DSN != "" {
		return opts.DSN, nil
	}
	if opts.Server == "" || opts.Database == "" {
		return "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "mysql requires server and database")
	}
	addr := opts.Server
	if !strings.Contains(addr, ":") {
		addr += ":3306"
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.User = opts.Username
	cfg.Passwd = opts.Password
	cfg.DBName = opts.Database
	cfg.AllowNativePasswords = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN(), nil
}

func (mysqlDialect) rebind(query string) string { return query }

func (mysqlDialect) setup() []string { return nil }

func (mysqlDialect) ddl() []string {
	// VARCHAR(191) keeps composite unique indexes under the InnoDB limit
	// with utf8mb4. The COALESCE key folds shared rows (NULL user_id) into
	// a single scope so the index constrains them too.
	return schemaDDL(strings.NewReplacer(
		"{pk}", "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY",
		"{key}", "VARCHAR(191)",
		"{text}", "TEXT",
		"{server_scope_unique}", "UNIQUE KEY server_registry_key_scope (consumer_key, (COALESCE(user_id, -1)))",
	))
}

const mysqlErrDupEntry = 1062

func (mysqlDialect) isUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDupEntry
}

type postgresDialect struct{}

func (postgresDialect) name() string       { return "postgres" }
func (postgresDialect) driverName() string { return "pgx" }

func (postgresDialect) dsn(opts Options) (string, error) {
	if opts.DSN != "" {
		return opts.DSN, nil
	}
	if opts.Server == "" || opts.Database == "" {
		return "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "postgres requires server and database")
	}
	parts := []string{
		"host=" + opts.Server,
		"dbname=" + opts.Database,
	}
	if opts.Username != "" {
		parts = append(parts, "user="+opts.Username)
	}
	if opts.Password != "" {
		parts = append(parts, "password="+opts.Password)
	}
	return strings.Join(parts, " "), nil
}

// rebind rewrites '?' placeholders to PostgreSQL's $1..$n form. Statement
// text in this package never contains a literal question mark.
func (postgresDialect) rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (postgresDialect) setup() []string { return nil }

func (postgresDialect) ddl() []string {
	return schemaDDL(strings.NewReplacer(
		"{pk}", "BIGSERIAL PRIMARY KEY",
		"{key}", "TEXT",
		"{text}", "TEXT",
		"{server_scope_unique}", "UNIQUE (consumer_key, user_id)",
	), publicServerIndex)
}

const pgErrUniqueViolation = "23505"

func (postgresDialect) isUniqueViolation(err error) bool {
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == pgErrUniqueViolation
}

// Unique indexes treat NULLs as distinct, so the plain composite index on
// server_registry never constrains shared rows. SQLite and PostgreSQL guard
// those with a partial index; MySQL folds them into the scope key instead.
const publicServerIndex = `CREATE UNIQUE INDEX IF NOT EXISTS server_registry_public_key
	ON server_registry (consumer_key) WHERE user_id IS NULL`

// schemaDDL renders the shared logical schema for one dialect. Timestamps
// and expiries are stored as unix seconds so TTL arithmetic stays in Go
// and the SQL stays portable.
func schemaDDL(r *strings.Replacer, extra ...string) []string {
	raw := []string{
		`CREATE TABLE IF NOT EXISTS consumer_registry (
			id {pk},
			user_id BIGINT,
			consumer_key {key} NOT NULL,
			consumer_secret {key} NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			status {key} NOT NULL DEFAULT '',
			requester_name {text} NOT NULL,
			requester_email {text} NOT NULL,
			callback_uri {text} NOT NULL,
			application_uri {text} NOT NULL,
			application_title {text} NOT NULL,
			application_descr {text} NOT NULL,
			application_notes {text} NOT NULL,
			application_type {text} NOT NULL,
			application_commercial INTEGER NOT NULL DEFAULT 0,
			issue_date BIGINT NOT NULL,
			timestamp BIGINT NOT NULL,
			UNIQUE (consumer_key)
		)`,
		`CREATE TABLE IF NOT EXISTS issued_tokens (
			id {pk},
			consumer_id BIGINT NOT NULL,
			user_id BIGINT,
			name {key} NOT NULL DEFAULT '',
			token {key} NOT NULL,
			token_secret {key} NOT NULL,
			token_type {key} NOT NULL,
			authorized INTEGER NOT NULL DEFAULT 0,
			verifier {key} NOT NULL DEFAULT '',
			referrer_host {text} NOT NULL,
			callback_url {text} NOT NULL,
			timestamp BIGINT NOT NULL,
			ttl BIGINT NOT NULL,
			UNIQUE (consumer_id, token_type, token),
			FOREIGN KEY (consumer_id) REFERENCES consumer_registry (id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS server_registry (
			id {pk},
			user_id BIGINT,
			consumer_key {key} NOT NULL,
			consumer_secret {key} NOT NULL,
			signature_methods {text} NOT NULL,
			server_uri {text} NOT NULL,
			server_uri_host {key} NOT NULL,
			server_uri_path {key} NOT NULL,
			request_token_uri {text} NOT NULL,
			authorize_uri {text} NOT NULL,
			access_token_uri {text} NOT NULL,
			timestamp BIGINT NOT NULL,
			{server_scope_unique}
		)`,
		`CREATE TABLE IF NOT EXISTS obtained_tokens (
			id {pk},
			server_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			name {key} NOT NULL DEFAULT '',
			token {key} NOT NULL,
			token_secret {key} NOT NULL,
			token_type {key} NOT NULL,
			timestamp BIGINT NOT NULL,
			ttl BIGINT NOT NULL,
			UNIQUE (server_id, token_type, token),
			FOREIGN KEY (server_id) REFERENCES server_registry (id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS nonces (
			consumer_key {key} NOT NULL,
			token {key} NOT NULL,
			timestamp BIGINT NOT NULL,
			nonce {key} NOT NULL,
			UNIQUE (consumer_key, token, timestamp, nonce)
		)`,
		`CREATE TABLE IF NOT EXISTS exchange_log (
			id {pk},
			server_consumer_key {key},
			server_token {key},
			client_consumer_key {key},
			client_token {key},
			user_id BIGINT,
			received {text} NOT NULL,
			sent {text} NOT NULL,
			base_string {text} NOT NULL,
			notes {text} NOT NULL,
			timestamp BIGINT NOT NULL,
			remote_ip {key} NOT NULL
		)`,
	}
	out := make([]string, 0, len(raw)+len(extra))
	for _, stmt := range raw {
		out = append(out, r.Replace(stmt))
	}
	return append(out, extra...)
}
