package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tandemlab/oauthstore"
	"github.com/tandemlab/oauthstore/keygen"
)

// defaultCallback is the 1.0a sentinel stored when a consumer supplies no
// callback with its request-token call.
const defaultCallback = "oob"

// AddRequestToken mints an unauthorized request token for a known, enabled
// consumer.
func (s *Store) AddRequestToken(consumerKey string, opts oauthstore.RequestTokenOptions) (*oauthstore.MintedToken, error) {
	const idQ = `SELECT id FROM consumer_registry WHERE consumer_key = ? AND enabled = 1`
	var consumerID int64
	err := s.db.QueryRow(s.q(idQ), consumerKey).Scan(&consumerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound, "no consumer with key %q or the key is disabled", consumerKey)
	}
	if err != nil {
		return nil, backendErr(idQ, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.requestTTL
	}
	callback := opts.Callback
	if callback == "" {
		callback = defaultCallback
	}

	token := keygen.Key(true)
	secret := keygen.Key(false)

	const q = `INSERT INTO issued_tokens (
			consumer_id, user_id, name, token, token_secret, token_type,
			authorized, verifier, referrer_host, callback_url, timestamp, ttl
		) VALUES (?, NULL, '', ?, ?, 'request', 0, '', '', ?, ?, ?)`
	_, err = s.db.Exec(s.q(q), consumerID, token, secret, callback, s.unixNow(), s.ttlUnix(ttl))
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return nil, oauthstore.Errorf(oauthstore.ErrConflict, "duplicate request token for consumer %q", consumerKey)
		}
		return nil, backendErr(q, err)
	}
	return &oauthstore.MintedToken{Token: token, Secret: secret, TTL: ttl}, nil
}

// RequestToken fetches a live request token with the application metadata
// shown on the authorize page.
func (s *Store) RequestToken(token string) (*oauthstore.RequestTokenInfo, error) {
	const q = `SELECT t.token, t.token_secret, c.consumer_key, c.consumer_secret,
			t.token_type, t.callback_url,
			c.application_title, c.application_descr, c.application_uri
		FROM issued_tokens t
			JOIN consumer_registry c ON t.consumer_id = c.id
		WHERE t.token_type = 'request' AND t.token = ? AND t.ttl >= ?`
	var info oauthstore.RequestTokenInfo
	var tokenType string
	err := s.db.QueryRow(s.q(q), token, s.unixNow()).Scan(
		&info.Token, &info.TokenSecret, &info.ConsumerKey, &info.ConsumerSecret,
		&tokenType, &info.CallbackURL,
		&info.ApplicationTitle, &info.ApplicationDescr, &info.ApplicationURI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound, "no request token %q", token)
	}
	if err != nil {
		return nil, backendErr(q, err)
	}
	info.TokenType = oauthstore.TokenType(tokenType)
	return &info, nil
}

// DeleteRequestToken drops a request token, authorized or not.
func (s *Store) DeleteRequestToken(token string) error {
	const q = `DELETE FROM issued_tokens WHERE token = ? AND token_type = 'request'`
	res, err := s.db.Exec(s.q(q), token)
	if err != nil {
		return backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return oauthstore.Errorf(oauthstore.ErrNotFound, "no request token %q", token)
	}
	return nil
}

// AuthorizeRequestToken upgrades an unauthorized request token after the
// resource owner approved it. The returned verifier must be presented at
// exchange time (1.0a). The referrer host is kept for user feedback at the
// consumer redirect.
func (s *Store) AuthorizeRequestToken(token string, userID int64, referrerHost string) (string, error) {
	verifier := keygen.Verifier()
	const q = `UPDATE issued_tokens
		SET authorized = 1, user_id = ?, timestamp = ?, referrer_host = ?, verifier = ?
		WHERE token = ? AND token_type = 'request' AND authorized = 0 AND ttl >= ?`
	res, err := s.db.Exec(s.q(q), userID, s.unixNow(), referrerHost, verifier, token, s.unixNow())
	if err != nil {
		return "", backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", oauthstore.Errorf(oauthstore.ErrNotFound, "no unauthorized request token %q", token)
	}
	return verifier, nil
}

// ExchangeRequestToken swaps an authorized request token for a brand-new
// access token. The conditional update is the optimistic lock: it only
// matches while the row is still an authorized request token, so exactly
// one of several concurrent exchanges can succeed.
func (s *Store) ExchangeRequestToken(token string, opts oauthstore.ExchangeOptions) (*oauthstore.MintedToken, error) {
	newToken := keygen.Key(true)
	newSecret := keygen.Key(false)

	q := `UPDATE issued_tokens
		SET token = ?, token_secret = ?, token_type = 'access', timestamp = ?, ttl = ?
		WHERE token = ? AND token_type = 'request' AND authorized = 1 AND ttl >= ?`
	args := []any{newToken, newSecret, s.unixNow(), s.ttlUnix(opts.TTL), token, s.unixNow()}
	if opts.Verifier != "" {
		q += ` AND verifier = ?`
		args = append(args, opts.Verifier)
	}
	res, err := s.db.Exec(s.q(q), args...)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return nil, oauthstore.Errorf(oauthstore.ErrConflict, "duplicate access token minted for request token %q", token)
		}
		return nil, backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound,
			"can't exchange request token %q for access token: no such token or not authorized", token)
	}
	return &oauthstore.MintedToken{Token: newToken, Secret: newSecret, TTL: opts.TTL}, nil
}

// AccessToken fetches a live access token of the given user.
func (s *Store) AccessToken(token string, userID int64) (*oauthstore.AccessTokenInfo, error) {
	const q = `SELECT t.token, t.token_secret, t.referrer_host,
			c.consumer_key, c.consumer_secret, c.application_uri,
			c.application_title, c.application_descr, c.callback_uri
		FROM issued_tokens t
			JOIN consumer_registry c ON t.consumer_id = c.id
		WHERE t.token_type = 'access' AND t.token = ? AND t.user_id = ? AND t.ttl >= ?`
	var info oauthstore.AccessTokenInfo
	err := s.db.QueryRow(s.q(q), token, userID, s.unixNow()).Scan(
		&info.Token, &info.TokenSecret, &info.ReferrerHost,
		&info.ConsumerKey, &info.ConsumerSecret, &info.ApplicationURI,
		&info.ApplicationTitle, &info.ApplicationDescr, &info.CallbackURI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound, "no access token %q for user %d", token, userID)
	}
	if err != nil {
		return nil, backendErr(q, err)
	}
	return &info, nil
}

// DeleteAccessToken revokes an access token. Non-admins may only revoke
// their own.
func (s *Store) DeleteAccessToken(token string, userID int64, admin bool) error {
	q := `DELETE FROM issued_tokens WHERE token = ? AND token_type = 'access'`
	args := []any{token}
	if !admin {
		q += ` AND user_id = ?`
		args = append(args, userID)
	}
	res, err := s.db.Exec(s.q(q), args...)
	if err != nil {
		return backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return oauthstore.Errorf(oauthstore.ErrNotFound, "no access token %q", token)
	}
	return nil
}

// SetAccessTokenTTL reacts to a peer's xoauth_token_ttl signal. A TTL of
// zero or less means immediate deletion, not an expired timestamp.
func (s *Store) SetAccessTokenTTL(token string, ttl time.Duration) error {
	if ttl <= 0 {
		const q = `DELETE FROM issued_tokens WHERE token = ? AND token_type = 'access'`
		res, err := s.db.Exec(s.q(q), token)
		if err != nil {
			return backendErr(q, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return oauthstore.Errorf(oauthstore.ErrNotFound, "no access token %q", token)
		}
		return nil
	}
	const q = `UPDATE issued_tokens SET ttl = ? WHERE token = ? AND token_type = 'access'`
	res, err := s.db.Exec(s.q(q), s.ttlUnix(ttl), token)
	if err != nil {
		return backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return oauthstore.Errorf(oauthstore.ErrNotFound, "no access token %q", token)
	}
	return nil
}

// CountAccessTokens counts the live access tokens issued to one consumer.
func (s *Store) CountAccessTokens(consumerKey string) (int, error) {
	const q = `SELECT COUNT(t.id)
		FROM issued_tokens t
			JOIN consumer_registry c ON t.consumer_id = c.id
		WHERE t.token_type = 'access' AND c.consumer_key = ? AND t.ttl >= ?`
	var n int
	if err := s.db.QueryRow(s.q(q), consumerKey, s.unixNow()).Scan(&n); err != nil {
		return 0, backendErr(q, err)
	}
	return n, nil
}

// ListIssuedTokens lists the live access tokens granted against the given
// user's account, with their consumers.
func (s *Store) ListIssuedTokens(userID int64) ([]oauthstore.IssuedToken, error) {
	const q = `SELECT c.consumer_key, c.consumer_secret, c.enabled, c.status,
			c.application_uri, c.application_title, c.application_descr, c.callback_uri,
			t.timestamp, t.token, t.token_secret, t.referrer_host
		FROM consumer_registry c
			JOIN issued_tokens t ON t.consumer_id = c.id
		WHERE t.user_id = ? AND t.token_type = 'access' AND t.ttl >= ?
		ORDER BY c.application_title, t.id`
	rows, err := s.db.Query(s.q(q), userID, s.unixNow())
	if err != nil {
		return nil, backendErr(q, err)
	}
	defer rows.Close()

	var out []oauthstore.IssuedToken
	for rows.Next() {
		var (
			it      oauthstore.IssuedToken
			enabled int
			ts      int64
		)
		if err := rows.Scan(&it.ConsumerKey, &it.ConsumerSecret, &enabled, &it.Status,
			&it.ApplicationURI, &it.ApplicationTitle, &it.ApplicationDescr, &it.CallbackURI,
			&ts, &it.Token, &it.TokenSecret, &it.ReferrerHost); err != nil {
			return nil, backendErr(q, err)
		}
		it.Enabled = enabled != 0
		it.Timestamp = unixTime(ts)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr(q, err)
	}
	return out, nil
}
