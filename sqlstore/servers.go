package sqlstore

import (
	"database/sql"
	"errors"
	"net/url"
	"strings"

	"github.com/tandemlab/oauthstore"
)

const serverColumns = `id, user_id, consumer_key, consumer_secret, signature_methods,
	server_uri, server_uri_host, server_uri_path,
	request_token_uri, authorize_uri, access_token_uri, timestamp`

func scanServer(row interface{ Scan(...any) error }) (*oauthstore.Server, error) {
	var (
		srv     oauthstore.Server
		userID  sql.NullInt64
		methods string
		ts      int64
	)
	err := row.Scan(&srv.ID, &userID, &srv.ConsumerKey, &srv.ConsumerSecret, &methods,
		&srv.ServerURI, &srv.ServerURIHost, &srv.ServerURIPath,
		&srv.RequestTokenURI, &srv.AuthorizeURI, &srv.AccessTokenURI, &ts)
	if err != nil {
		return nil, err
	}
	srv.UserID = idPtr(userID)
	srv.SignatureMethods = splitMethods(methods)
	srv.Timestamp = unixTime(ts)
	return &srv, nil
}

// splitServerURI derives the host/path pair used for prefix matching.
// Host defaults to localhost and is lowercased; the path always ends with
// a slash so "/api/" matches "/api/v2/items" but not "/apiary".
func splitServerURI(raw string) (host, path string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "malformed uri %q", raw)
	}
	host = strings.ToLower(u.Hostname())
	if host == "" {
		host = "localhost"
	}
	path = u.Path
	if path == "" || !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return host, path, nil
}

func joinMethods(methods []string) string {
	up := make([]string, len(methods))
	for i, m := range methods {
		up[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	return strings.Join(up, ",")
}

func splitMethods(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// UpsertServer registers or updates a remote OAuth server for this
// installation. Key and secret come from the remote provider and are
// stored as supplied.
func (s *Store) UpsertServer(srv *oauthstore.ServerUpdate, userID int64, admin bool) (string, error) {
	if srv.ConsumerKey == "" {
		return "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "the field \"consumer_key\" must be set and non empty")
	}
	if srv.ServerURI == "" {
		return "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "the field \"server_uri\" must be set and non empty")
	}

	// Key uniqueness is scoped to (key, owner-or-public) as seen by this
	// user. The unique index is the real guard; this precheck yields the
	// friendlier error.
	var (
		dupQ    string
		dupArgs []any
	)
	if srv.ID != 0 {
		dupQ = `SELECT id FROM server_registry
			WHERE consumer_key = ? AND id <> ? AND (user_id = ? OR user_id IS NULL)`
		dupArgs = []any{srv.ConsumerKey, srv.ID, userID}
	} else {
		dupQ = `SELECT id FROM server_registry
			WHERE consumer_key = ? AND (user_id = ? OR user_id IS NULL)`
		dupArgs = []any{srv.ConsumerKey, userID}
	}
	var dup int64
	err := s.db.QueryRow(s.q(dupQ), dupArgs...).Scan(&dup)
	if err == nil {
		return "", oauthstore.Errorf(oauthstore.ErrConflict, "the server with key %q has already been registered", srv.ConsumerKey)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", backendErr(dupQ, err)
	}

	host, path, err := splitServerURI(srv.ServerURI)
	if err != nil {
		return "", err
	}
	methods := joinMethods(srv.SignatureMethods)

	if srv.ID != 0 {
		return s.updateServer(srv, host, path, methods, userID, admin)
	}

	owner := &userID
	if admin && srv.SetOwner {
		owner = srv.Owner
	}
	const q = `INSERT INTO server_registry (
			user_id, consumer_key, consumer_secret, signature_methods,
			server_uri, server_uri_host, server_uri_path,
			request_token_uri, authorize_uri, access_token_uri, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(s.q(q),
		nullableID(owner), srv.ConsumerKey, srv.ConsumerSecret, methods,
		srv.ServerURI, host, path,
		srv.RequestTokenURI, srv.AuthorizeURI, srv.AccessTokenURI, s.unixNow())
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return "", oauthstore.Errorf(oauthstore.ErrConflict, "the server with key %q has already been registered", srv.ConsumerKey)
		}
		return "", backendErr(q, err)
	}
	return srv.ConsumerKey, nil
}

func (s *Store) updateServer(srv *oauthstore.ServerUpdate, host, path, methods string, userID int64, admin bool) (string, error) {
	if !admin {
		var owner sql.NullInt64
		const q = `SELECT user_id FROM server_registry WHERE id = ?`
		err := s.db.QueryRow(s.q(q), srv.ID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return "", oauthstore.Errorf(oauthstore.ErrNotFound, "no server with id %d", srv.ID)
		}
		if err != nil {
			return "", backendErr(q, err)
		}
		if !owner.Valid || owner.Int64 != userID {
			return "", oauthstore.Errorf(oauthstore.ErrForbidden, "user %d is not allowed to update this server", userID)
		}
	} else if srv.SetOwner {
		const q = `UPDATE server_registry SET user_id = ? WHERE id = ?`
		if _, err := s.db.Exec(s.q(q), nullableID(srv.Owner), srv.ID); err != nil {
			if s.dialect.isUniqueViolation(err) {
				return "", oauthstore.Errorf(oauthstore.ErrConflict, "the server with key %q has already been registered", srv.ConsumerKey)
			}
			return "", backendErr(q, err)
		}
	}

	const q = `UPDATE server_registry SET
			consumer_key = ?, consumer_secret = ?, signature_methods = ?,
			server_uri = ?, server_uri_host = ?, server_uri_path = ?,
			request_token_uri = ?, authorize_uri = ?, access_token_uri = ?,
			timestamp = ?
		WHERE id = ?`
	res, err := s.db.Exec(s.q(q),
		srv.ConsumerKey, srv.ConsumerSecret, methods,
		srv.ServerURI, host, path,
		srv.RequestTokenURI, srv.AuthorizeURI, srv.AccessTokenURI,
		s.unixNow(), srv.ID)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return "", oauthstore.Errorf(oauthstore.ErrConflict, "the server with key %q has already been registered", srv.ConsumerKey)
		}
		return "", backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", oauthstore.Errorf(oauthstore.ErrNotFound, "no server with id %d", srv.ID)
	}
	return srv.ConsumerKey, nil
}

// DeleteServer removes a server registration; obtained tokens go with it.
func (s *Store) DeleteServer(consumerKey string, userID int64, admin bool) error {
	var q string
	if admin {
		q = `DELETE FROM server_registry
			WHERE consumer_key = ? AND (user_id = ? OR user_id IS NULL)`
	} else {
		q = `DELETE FROM server_registry WHERE consumer_key = ? AND user_id = ?`
	}
	res, err := s.db.Exec(s.q(q), consumerKey, userID)
	if err != nil {
		return backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return oauthstore.Errorf(oauthstore.ErrNotFound, "no server with key %q (for this user)", consumerKey)
	}
	return nil
}

// GetServer fetches a registration visible to the user: owned or public.
func (s *Store) GetServer(consumerKey string, userID int64) (*oauthstore.Server, error) {
	q := `SELECT ` + serverColumns + ` FROM server_registry
		WHERE consumer_key = ? AND (user_id = ? OR user_id IS NULL)
		ORDER BY user_id IS NULL, id LIMIT 1`
	srv, err := scanServer(s.db.QueryRow(s.q(q), consumerKey, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound, "no server with key %q has been registered (for this user)", consumerKey)
	}
	if err != nil {
		return nil, backendErr(q, err)
	}
	return srv, nil
}

// ServerForURI resolves the most specific registration for a request URI:
// equal host, stored path a prefix of the request path, longest path wins,
// user-owned beats public.
func (s *Store) ServerForURI(uri string, userID int64) (*oauthstore.Server, error) {
	host, path, err := splitServerURI(uri)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + serverColumns + ` FROM server_registry
		WHERE server_uri_host = ?
		  AND server_uri_path = SUBSTR(?, 1, LENGTH(server_uri_path))
		  AND (user_id = ? OR user_id IS NULL)
		ORDER BY user_id IS NULL, LENGTH(server_uri_path) DESC, id
		LIMIT 1`
	srv, err := scanServer(s.db.QueryRow(s.q(q), host, path, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound, "no server available for %q", uri)
	}
	if err != nil {
		return nil, backendErr(q, err)
	}
	return srv, nil
}

// ListServers returns registrations visible to the user. A non-empty q
// narrows the result to substring matches on key, URI, host or path.
func (s *Store) ListServers(qstr string, userID int64) ([]oauthstore.Server, error) {
	qstr = strings.TrimSpace(strings.ReplaceAll(qstr, "%", ""))

	query := `SELECT ` + serverColumns + ` FROM server_registry`
	var args []any
	if qstr != "" {
		like := "%" + qstr + "%"
		query += ` WHERE (consumer_key LIKE ? OR server_uri LIKE ?
				OR server_uri_host LIKE ? OR server_uri_path LIKE ?)
			AND (user_id = ? OR user_id IS NULL)`
		args = append(args, like, like, like, like, userID)
	} else {
		query += ` WHERE user_id = ? OR user_id IS NULL`
		args = append(args, userID)
	}
	query += ` ORDER BY server_uri_host, server_uri_path, id`

	rows, err := s.db.Query(s.q(query), args...)
	if err != nil {
		return nil, backendErr(query, err)
	}
	defer rows.Close()

	var out []oauthstore.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, backendErr(query, err)
		}
		out = append(out, *srv)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr(query, err)
	}
	return out, nil
}
