package sqlstore

import (
	"database/sql"
	"errors"

	"github.com/tandemlab/oauthstore"
)

// SecretsForVerify finds the credentials for verifying an inbound signed
// request. With TokenTypeNone only the consumer signature is verified (the
// request-token step, before any token exists); token fields come back
// empty and UserID nil.
func (s *Store) SecretsForVerify(consumerKey, token string, tokenType oauthstore.TokenType) (*oauthstore.VerifyCredentials, error) {
	if tokenType == oauthstore.TokenTypeNone {
		const q = `SELECT consumer_key, consumer_secret
			FROM consumer_registry
			WHERE consumer_key = ? AND enabled = 1`
		var creds oauthstore.VerifyCredentials
		err := s.db.QueryRow(s.q(q), consumerKey).Scan(&creds.ConsumerKey, &creds.ConsumerSecret)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oauthstore.Errorf(oauthstore.ErrNotFound,
				"the consumer key %q does not exist or is not enabled", consumerKey)
		}
		if err != nil {
			return nil, backendErr(q, err)
		}
		return &creds, nil
	}

	if _, err := oauthstore.ParseTokenType(string(tokenType)); err != nil {
		return nil, err
	}

	const q = `SELECT t.user_id, c.consumer_key, c.consumer_secret, t.token, t.token_secret
		FROM consumer_registry c
			JOIN issued_tokens t ON t.consumer_id = c.id
		WHERE t.token_type = ? AND c.consumer_key = ? AND t.token = ?
		  AND c.enabled = 1 AND t.ttl >= ?`
	var (
		creds  oauthstore.VerifyCredentials
		userID sql.NullInt64
	)
	err := s.db.QueryRow(s.q(q), string(tokenType), consumerKey, token, s.unixNow()).Scan(
		&userID, &creds.ConsumerKey, &creds.ConsumerSecret, &creds.Token, &creds.TokenSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound,
			"the consumer key %q token %q combination does not exist or is not enabled", consumerKey, token)
	}
	if err != nil {
		return nil, backendErr(q, err)
	}
	creds.UserID = idPtr(userID)
	return &creds, nil
}

// SecretsForSignature finds everything needed to sign an outgoing request
// to the given URI as the given user: the registration visible to the user
// whose host matches and whose path is the longest prefix of the request
// path, joined with the user's live access token of that name. User-owned
// registrations win over public ones.
func (s *Store) SecretsForSignature(uri string, userID int64, name string) (*oauthstore.SignatureCredentials, error) {
	host, path, err := splitServerURI(uri)
	if err != nil {
		return nil, err
	}
	const q = `SELECT r.consumer_key, r.consumer_secret, t.token, t.token_secret, r.signature_methods
		FROM server_registry r
			JOIN obtained_tokens t ON t.server_id = r.id
		WHERE r.server_uri_host = ?
		  AND r.server_uri_path = SUBSTR(?, 1, LENGTH(r.server_uri_path))
		  AND (r.user_id = ? OR r.user_id IS NULL)
		  AND t.user_id = ? AND t.token_type = 'access' AND t.name = ?
		  AND t.ttl >= ?
		ORDER BY r.user_id IS NULL, LENGTH(r.server_uri_path) DESC, r.id
		LIMIT 1`
	var (
		creds   oauthstore.SignatureCredentials
		methods string
	)
	err = s.db.QueryRow(s.q(q), host, path, userID, userID, name, s.unixNow()).Scan(
		&creds.ConsumerKey, &creds.ConsumerSecret, &creds.Token, &creds.TokenSecret, &methods)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound, "no server tokens available for %q", uri)
	}
	if err != nil {
		return nil, backendErr(q, err)
	}
	creds.SignatureMethods = splitMethods(methods)
	return &creds, nil
}
