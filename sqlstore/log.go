package sqlstore

import (
	"database/sql"
	"strings"

	"github.com/tandemlab/oauthstore"
)

// unknownRemoteIP is recorded when the caller could not supply a peer
// address (e.g. a CLI invocation).
const unknownRemoteIP = "0.0.0.0"

// logPageSize caps how many entries a single ListLog call returns.
const logPageSize = 100

// sanitizeText replaces invalid encoding in caller-supplied text with '.'
// so one bad request cannot poison the log.
func sanitizeText(v string) string {
	return strings.ToValidUTF8(v, ".")
}

func nullableKey(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// AddLog appends one OAuth exchange to the audit log. Absent correlation
// keys are stored as NULL; a nil userID marks a system-wide entry.
func (s *Store) AddLog(keys oauthstore.LogKeys, received, sent, baseString, notes string, userID *int64, remoteIP string) error {
	if remoteIP == "" {
		remoteIP = unknownRemoteIP
	}
	const q = `INSERT INTO exchange_log (
			server_consumer_key, server_token, client_consumer_key, client_token,
			user_id, received, sent, base_string, notes, timestamp, remote_ip
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(s.q(q),
		nullableKey(keys.ServerConsumerKey), nullableKey(keys.ServerToken),
		nullableKey(keys.ClientConsumerKey), nullableKey(keys.ClientToken),
		nullableID(userID),
		sanitizeText(received), sanitizeText(sent), sanitizeText(baseString), sanitizeText(notes),
		s.unixNow(), remoteIP)
	if err != nil {
		return backendErr(q, err)
	}
	return nil
}

// ListLog returns the newest matching entries, at most one page. Every
// non-empty filter field must match exactly, and callers only ever see
// system-wide entries or their own.
func (s *Store) ListLog(filter oauthstore.LogFilter, userID int64) ([]oauthstore.LogEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value != "" {
			where = append(where, column+" = ?")
			args = append(args, value)
		}
	}
	add("server_consumer_key", filter.ServerConsumerKey)
	add("server_token", filter.ServerToken)
	add("client_consumer_key", filter.ClientConsumerKey)
	add("client_token", filter.ClientToken)

	where = append(where, "(user_id IS NULL OR user_id = ?)")
	args = append(args, userID)

	q := `SELECT id, server_consumer_key, server_token, client_consumer_key, client_token,
			user_id, received, sent, base_string, notes, timestamp, remote_ip
		FROM exchange_log
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id DESC
		LIMIT ?`
	args = append(args, logPageSize)

	rows, err := s.db.Query(s.q(q), args...)
	if err != nil {
		return nil, backendErr(q, err)
	}
	defer rows.Close()

	var out []oauthstore.LogEntry
	for rows.Next() {
		var (
			e         oauthstore.LogEntry
			sck, st   sql.NullString
			cck, ct   sql.NullString
			entryUser sql.NullInt64
			ts        int64
		)
		if err := rows.Scan(&e.ID, &sck, &st, &cck, &ct,
			&entryUser, &e.Received, &e.Sent, &e.BaseString, &e.Notes, &ts, &e.RemoteIP); err != nil {
			return nil, backendErr(q, err)
		}
		e.ServerConsumerKey = sck.String
		e.ServerToken = st.String
		e.ClientConsumerKey = cck.String
		e.ClientToken = ct.String
		e.UserID = idPtr(entryUser)
		e.Timestamp = unixTime(ts)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr(q, err)
	}
	return out, nil
}
