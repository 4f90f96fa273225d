package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tandemlab/oauthstore"
)

// AddServerToken stores a token this installation obtained from a remote
// server. Any previous token of the same type and name for that
// registration and user is replaced; the unique constraint on
// (registration, type, token) turns a concurrent duplicate into Conflict.
func (s *Store) AddServerToken(consumerKey string, tokenType oauthstore.TokenType, token, secret string, userID int64, opts oauthstore.ServerTokenOptions) error {
	if _, err := oauthstore.ParseTokenType(string(tokenType)); err != nil {
		return err
	}

	var expiry int64
	switch {
	case opts.TTL > 0:
		expiry = s.ttlUnix(opts.TTL)
	case tokenType == oauthstore.TokenTypeRequest:
		expiry = s.ttlUnix(s.requestTTL)
	default:
		expiry = infiniteTTL
	}

	// A user may have registered the same consumer key against several
	// server URIs; the optional ServerURI picks one of them.
	idQ := `SELECT id FROM server_registry WHERE consumer_key = ? AND user_id = ?`
	idArgs := []any{consumerKey, userID}
	if opts.ServerURI != "" {
		idQ += ` AND server_uri = ?`
		idArgs = append(idArgs, opts.ServerURI)
	}
	var serverID int64
	err := s.db.QueryRow(s.q(idQ), idArgs...).Scan(&serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return oauthstore.Errorf(oauthstore.ErrNotFound, "no server associated with consumer key %q", consumerKey)
	}
	if err != nil {
		return backendErr(idQ, err)
	}

	const delQ = `DELETE FROM obtained_tokens
		WHERE server_id = ? AND user_id = ? AND token_type = ? AND name = ?`
	if _, err := s.db.Exec(s.q(delQ), serverID, userID, string(tokenType), opts.Name); err != nil {
		return backendErr(delQ, err)
	}

	const insQ = `INSERT INTO obtained_tokens (
			server_id, user_id, name, token, token_secret, token_type, timestamp, ttl
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.Exec(s.q(insQ), serverID, userID, opts.Name, token, secret,
		string(tokenType), s.unixNow(), expiry)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return oauthstore.Errorf(oauthstore.ErrConflict,
				"received duplicate token %q for the same consumer key %q", token, consumerKey)
		}
		return backendErr(insQ, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return oauthstore.Errorf(oauthstore.ErrConflict,
			"received duplicate token %q for the same consumer key %q", token, consumerKey)
	}
	return nil
}

const obtainedColumns = `r.consumer_key, r.consumer_secret, t.token, t.token_secret,
	t.name, t.user_id, r.signature_methods,
	r.server_uri, r.server_uri_host, r.server_uri_path,
	r.request_token_uri, r.authorize_uri, r.access_token_uri,
	t.timestamp, t.ttl`

func scanObtained(row interface{ Scan(...any) error }) (*oauthstore.ServerTokenInfo, error) {
	var (
		info    oauthstore.ServerTokenInfo
		methods string
		ts      int64
		expiry  int64
	)
	err := row.Scan(&info.ConsumerKey, &info.ConsumerSecret, &info.Token, &info.TokenSecret,
		&info.TokenName, &info.UserID, &methods,
		&info.ServerURI, &info.ServerURIHost, &info.ServerURIPath,
		&info.RequestTokenURI, &info.AuthorizeURI, &info.AccessTokenURI,
		&ts, &expiry)
	if err != nil {
		return nil, err
	}
	info.SignatureMethods = splitMethods(methods)
	info.Timestamp = unixTime(ts)
	info.ExpiresAt = unixTime(expiry)
	return &info, nil
}

// ServerTokenSecrets fetches the most recent live token of the given type
// and name that the user holds for a remote server.
func (s *Store) ServerTokenSecrets(consumerKey, token string, tokenType oauthstore.TokenType, userID int64, name string) (*oauthstore.ServerTokenInfo, error) {
	if _, err := oauthstore.ParseTokenType(string(tokenType)); err != nil {
		return nil, err
	}
	q := `SELECT ` + obtainedColumns + `
		FROM server_registry r
			JOIN obtained_tokens t ON t.server_id = r.id
		WHERE r.consumer_key = ? AND t.token_type = ? AND t.token = ?
		  AND t.user_id = ? AND t.name = ? AND t.ttl >= ?
		ORDER BY t.timestamp DESC, t.id DESC
		LIMIT 1`
	info, err := scanObtained(s.db.QueryRow(s.q(q), consumerKey, string(tokenType), token, userID, name, s.unixNow()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound,
			"could not find a %q token for consumer %q and user %d", tokenType, consumerKey, userID)
	}
	if err != nil {
		return nil, backendErr(q, err)
	}
	return info, nil
}

// ServerToken fetches a specific live access token the user obtained from
// a remote server.
func (s *Store) ServerToken(consumerKey, token string, userID int64) (*oauthstore.ServerTokenInfo, error) {
	q := `SELECT ` + obtainedColumns + `
		FROM server_registry r
			JOIN obtained_tokens t ON t.server_id = r.id
		WHERE r.consumer_key = ? AND t.user_id = ? AND t.token_type = 'access'
		  AND t.token = ? AND t.ttl >= ?`
	info, err := scanObtained(s.db.QueryRow(s.q(q), consumerKey, userID, token, s.unixNow()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound,
			"no such consumer key %q and token %q combination for user %d", consumerKey, token, userID)
	}
	if err != nil {
		return nil, backendErr(q, err)
	}
	return info, nil
}

// ListServerTokens lists every live access token the user holds across
// remote servers.
func (s *Store) ListServerTokens(userID int64) ([]oauthstore.ServerTokenInfo, error) {
	q := `SELECT ` + obtainedColumns + `
		FROM server_registry r
			JOIN obtained_tokens t ON t.server_id = r.id
		WHERE t.user_id = ? AND t.token_type = 'access' AND t.ttl >= ?
		ORDER BY r.server_uri_host, r.server_uri_path, t.id`
	rows, err := s.db.Query(s.q(q), userID, s.unixNow())
	if err != nil {
		return nil, backendErr(q, err)
	}
	defer rows.Close()

	var out []oauthstore.ServerTokenInfo
	for rows.Next() {
		info, err := scanObtained(rows)
		if err != nil {
			return nil, backendErr(q, err)
		}
		out = append(out, *info)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr(q, err)
	}
	return out, nil
}

// CountServerTokens counts the live access tokens held for a remote server.
func (s *Store) CountServerTokens(consumerKey string) (int, error) {
	const q = `SELECT COUNT(t.id)
		FROM obtained_tokens t
			JOIN server_registry r ON t.server_id = r.id
		WHERE t.token_type = 'access' AND r.consumer_key = ? AND t.ttl >= ?`
	var n int
	if err := s.db.QueryRow(s.q(q), consumerKey, s.unixNow()).Scan(&n); err != nil {
		return 0, backendErr(q, err)
	}
	return n, nil
}

// DeleteServerToken drops a token obtained from a remote server.
// Non-admins may only drop their own.
func (s *Store) DeleteServerToken(consumerKey, token string, userID int64, admin bool) error {
	q := `DELETE FROM obtained_tokens
		WHERE token = ?
		  AND server_id IN (SELECT id FROM server_registry WHERE consumer_key = ?)`
	args := []any{token, consumerKey}
	if !admin {
		q += ` AND user_id = ?`
		args = append(args, userID)
	}
	res, err := s.db.Exec(s.q(q), args...)
	if err != nil {
		return backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return oauthstore.Errorf(oauthstore.ErrNotFound, "no token %q for consumer key %q", token, consumerKey)
	}
	return nil
}

// SetServerTokenTTL applies a TTL received with an xoauth_token_ttl
// response parameter. A TTL of zero or less deletes the token immediately.
func (s *Store) SetServerTokenTTL(consumerKey, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.DeleteServerToken(consumerKey, token, 0, true)
	}
	const q = `UPDATE obtained_tokens SET ttl = ?
		WHERE token = ?
		  AND server_id IN (SELECT id FROM server_registry WHERE consumer_key = ?)`
	res, err := s.db.Exec(s.q(q), s.ttlUnix(ttl), token, consumerKey)
	if err != nil {
		return backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return oauthstore.Errorf(oauthstore.ErrNotFound, "no token %q for consumer key %q", token, consumerKey)
	}
	return nil
}
