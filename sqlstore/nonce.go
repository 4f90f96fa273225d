package sqlstore

import (
	"database/sql"

	"github.com/tandemlab/oauthstore"
)

// CheckNonce enforces the replay rules for one inbound signed request:
// the timestamp may lag the newest one seen for this (consumer key, token)
// pair by at most the skew window, and the exact four-field tuple must
// never repeat. The unique constraint on the nonce table is the actual
// replay guard; the max-timestamp precheck is an early exit. Records older
// than the window are purged afterwards.
func (s *Store) CheckNonce(consumerKey, token string, timestamp int64, nonce string) error {
	const maxQ = `SELECT MAX(timestamp) FROM nonces
		WHERE consumer_key = ? AND token = ?`
	var prior sql.NullInt64
	if err := s.db.QueryRow(s.q(maxQ), consumerKey, token).Scan(&prior); err != nil {
		return backendErr(maxQ, err)
	}
	if prior.Valid && prior.Int64 > timestamp+s.maxSkew {
		return oauthstore.Errorf(oauthstore.ErrReplay,
			"timestamp is out of sequence, request rejected (got %d, last max is %d, allowed skew is %d)",
			timestamp, prior.Int64, s.maxSkew)
	}

	const insQ = `INSERT INTO nonces (consumer_key, token, timestamp, nonce)
		VALUES (?, ?, ?, ?)`
	if _, err := s.db.Exec(s.q(insQ), consumerKey, token, timestamp, nonce); err != nil {
		if s.dialect.isUniqueViolation(err) {
			return oauthstore.Errorf(oauthstore.ErrReplay,
				"duplicate timestamp/nonce combination, possible replay attack, request rejected")
		}
		return backendErr(insQ, err)
	}

	const purgeQ = `DELETE FROM nonces
		WHERE consumer_key = ? AND token = ? AND timestamp < ?`
	if _, err := s.db.Exec(s.q(purgeQ), consumerKey, token, timestamp-s.maxSkew); err != nil {
		return backendErr(purgeQ, err)
	}
	return nil
}
