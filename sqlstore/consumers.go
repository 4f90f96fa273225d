package sqlstore

import (
	"database/sql"
	"errors"

	"github.com/tandemlab/oauthstore"
	"github.com/tandemlab/oauthstore/keygen"
)

const consumerColumns = `id, user_id, consumer_key, consumer_secret, enabled, status,
	requester_name, requester_email, callback_uri, application_uri,
	application_title, application_descr, application_notes, application_type,
	application_commercial, issue_date, timestamp`

func scanConsumer(row interface{ Scan(...any) error }) (*oauthstore.Consumer, error) {
	var (
		c          oauthstore.Consumer
		userID     sql.NullInt64
		enabled    int
		commercial int
		issueDate  int64
		ts         int64
	)
	err := row.Scan(&c.ID, &userID, &c.ConsumerKey, &c.ConsumerSecret, &enabled, &c.Status,
		&c.RequesterName, &c.RequesterEmail, &c.CallbackURI, &c.ApplicationURI,
		&c.ApplicationTitle, &c.ApplicationDescr, &c.ApplicationNotes, &c.ApplicationType,
		&commercial, &issueDate, &ts)
	if err != nil {
		return nil, err
	}
	c.UserID = idPtr(userID)
	c.Enabled = enabled != 0
	c.ApplicationCommercial = commercial != 0
	c.IssueDate = unixTime(issueDate)
	c.Timestamp = unixTime(ts)
	return &c, nil
}

// UpsertConsumer registers or updates a consumer of this installation.
// On create the key and secret are generated here; they are never changed
// by an update. Ownership may only be transferred by admins, and only when
// the update explicitly sets an owner.
func (s *Store) UpsertConsumer(c *oauthstore.ConsumerUpdate, userID int64, admin bool) (string, error) {
	if c.ID != 0 {
		return s.updateConsumer(c, userID, admin)
	}
	return s.insertConsumer(c, userID, admin)
}

func (s *Store) insertConsumer(c *oauthstore.ConsumerUpdate, userID int64, admin bool) (string, error) {
	if !admin {
		if c.RequesterName == "" {
			return "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "the field \"requester_name\" must be set and non empty")
		}
		if c.RequesterEmail == "" {
			return "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "the field \"requester_email\" must be set and non empty")
		}
	}

	key := keygen.Key(true)
	secret := keygen.Key(false)

	owner := &userID
	if admin && c.SetOwner {
		owner = c.Owner
	}

	now := s.unixNow()
	const q = `INSERT INTO consumer_registry (
			user_id, consumer_key, consumer_secret, enabled, status,
			requester_name, requester_email, callback_uri, application_uri,
			application_title, application_descr, application_notes, application_type,
			application_commercial, issue_date, timestamp
		) VALUES (?, ?, ?, 1, 'active', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(s.q(q),
		nullableID(owner), key, secret,
		c.RequesterName, c.RequesterEmail, c.CallbackURI, c.ApplicationURI,
		c.ApplicationTitle, c.ApplicationDescr, c.ApplicationNotes, c.ApplicationType,
		boolInt(c.ApplicationCommercial), now, now)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return "", oauthstore.Errorf(oauthstore.ErrConflict, "duplicate consumer key %q", key)
		}
		return "", backendErr(q, err)
	}
	return key, nil
}

func (s *Store) updateConsumer(c *oauthstore.ConsumerUpdate, userID int64, admin bool) (string, error) {
	if c.ConsumerKey == "" {
		return "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "the field \"consumer_key\" must be set and non empty")
	}
	if !admin && c.ConsumerSecret == "" {
		return "", oauthstore.Errorf(oauthstore.ErrInvalidArgument, "the field \"consumer_secret\" must be set and non empty")
	}

	if !admin {
		var owner sql.NullInt64
		const q = `SELECT user_id FROM consumer_registry WHERE id = ?`
		err := s.db.QueryRow(s.q(q), c.ID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return "", oauthstore.Errorf(oauthstore.ErrNotFound, "no consumer with id %d", c.ID)
		}
		if err != nil {
			return "", backendErr(q, err)
		}
		if !owner.Valid || owner.Int64 != userID {
			return "", oauthstore.Errorf(oauthstore.ErrForbidden, "user %d is not allowed to update this consumer", userID)
		}
	} else if c.SetOwner {
		const q = `UPDATE consumer_registry SET user_id = ? WHERE id = ?`
		if _, err := s.db.Exec(s.q(q), nullableID(c.Owner), c.ID); err != nil {
			return "", backendErr(q, err)
		}
	}

	q := `UPDATE consumer_registry SET
			requester_name = ?, requester_email = ?, callback_uri = ?,
			application_uri = ?, application_title = ?, application_descr = ?,
			application_notes = ?, application_type = ?, application_commercial = ?,
			timestamp = ?
		WHERE id = ? AND consumer_key = ?`
	args := []any{
		c.RequesterName, c.RequesterEmail, c.CallbackURI,
		c.ApplicationURI, c.ApplicationTitle, c.ApplicationDescr,
		c.ApplicationNotes, c.ApplicationType, boolInt(c.ApplicationCommercial),
		s.unixNow(), c.ID, c.ConsumerKey,
	}
	if !admin {
		q += ` AND consumer_secret = ?`
		args = append(args, c.ConsumerSecret)
	}
	res, err := s.db.Exec(s.q(q), args...)
	if err != nil {
		return "", backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", oauthstore.Errorf(oauthstore.ErrNotFound, "no consumer with id %d and key %q", c.ID, c.ConsumerKey)
	}
	return c.ConsumerKey, nil
}

// DeleteConsumer removes a consumer registration; issued tokens go with it.
func (s *Store) DeleteConsumer(consumerKey string, userID int64, admin bool) error {
	var (
		q    string
		args []any
	)
	if admin {
		q = `DELETE FROM consumer_registry
			WHERE consumer_key = ? AND (user_id = ? OR user_id IS NULL)`
		args = []any{consumerKey, userID}
	} else {
		q = `DELETE FROM consumer_registry WHERE consumer_key = ? AND user_id = ?`
		args = []any{consumerKey, userID}
	}
	res, err := s.db.Exec(s.q(q), args...)
	if err != nil {
		return backendErr(q, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return oauthstore.Errorf(oauthstore.ErrNotFound, "no consumer with key %q (for this user)", consumerKey)
	}
	return nil
}

// GetConsumer fetches a consumer registration by key.
func (s *Store) GetConsumer(consumerKey string, userID int64, admin bool) (*oauthstore.Consumer, error) {
	q := `SELECT ` + consumerColumns + ` FROM consumer_registry WHERE consumer_key = ?`
	c, err := scanConsumer(s.db.QueryRow(s.q(q), consumerKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound, "no consumer with key %q", consumerKey)
	}
	if err != nil {
		return nil, backendErr(q, err)
	}
	if !admin && c.UserID != nil && *c.UserID != userID {
		return nil, oauthstore.Errorf(oauthstore.ErrForbidden, "no access to the consumer with key %q", consumerKey)
	}
	return c, nil
}

// StaticConsumer returns the shared installation key, creating it when
// missing. The key identifies the install, not a confidential credential,
// so its secret is always empty.
func (s *Store) StaticConsumer() (string, error) {
	key, err := s.staticConsumerKey()
	if err == nil || !errors.Is(err, oauthstore.ErrNotFound) {
		return key, err
	}

	now := s.unixNow()
	const q = `INSERT INTO consumer_registry (
			user_id, consumer_key, consumer_secret, enabled, status,
			requester_name, requester_email, callback_uri, application_uri,
			application_title, application_descr, application_notes, application_type,
			application_commercial, issue_date, timestamp
		) VALUES (NULL, ?, '', 1, 'active', '', '', '', '',
			'Static shared consumer key', '', 'Static shared consumer key', '', 0, ?, ?)`
	if _, err := s.db.Exec(s.q(q), "sc-"+keygen.Key(true), now, now); err != nil {
		// A concurrent caller may have created it in the meantime; the
		// re-select below settles who won.
		if !s.dialect.isUniqueViolation(err) {
			return "", backendErr(q, err)
		}
	}
	return s.staticConsumerKey()
}

func (s *Store) staticConsumerKey() (string, error) {
	const q = `SELECT consumer_key FROM consumer_registry
		WHERE consumer_key LIKE 'sc-%' AND user_id IS NULL
		ORDER BY id LIMIT 1`
	var key string
	err := s.db.QueryRow(s.q(q)).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", oauthstore.Errorf(oauthstore.ErrNotFound, "no static consumer key")
	}
	if err != nil {
		return "", backendErr(q, err)
	}
	return key, nil
}

// ListConsumers returns the caller's keys plus all public ones.
func (s *Store) ListConsumers(userID int64) ([]oauthstore.Consumer, error) {
	q := `SELECT ` + consumerColumns + ` FROM consumer_registry
		WHERE user_id = ? OR user_id IS NULL
		ORDER BY application_title, id`
	rows, err := s.db.Query(s.q(q), userID)
	if err != nil {
		return nil, backendErr(q, err)
	}
	defer rows.Close()

	var out []oauthstore.Consumer
	for rows.Next() {
		c, err := scanConsumer(rows)
		if err != nil {
			return nil, backendErr(q, err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr(q, err)
	}
	return out, nil
}

// ListApplications returns a page of the public application directory.
// Secrets and requester data are never included.
func (s *Store) ListApplications(offset, limit int) ([]oauthstore.Application, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 25
	}
	const q = `SELECT id, enabled, status, issue_date, application_uri,
			application_title, application_descr
		FROM consumer_registry
		ORDER BY application_title, id
		LIMIT ? OFFSET ?`
	rows, err := s.db.Query(s.q(q), limit, offset)
	if err != nil {
		return nil, backendErr(q, err)
	}
	defer rows.Close()

	var out []oauthstore.Application
	for rows.Next() {
		var (
			a         oauthstore.Application
			enabled   int
			issueDate int64
		)
		if err := rows.Scan(&a.ID, &enabled, &a.Status, &issueDate,
			&a.ApplicationURI, &a.ApplicationTitle, &a.ApplicationDescr); err != nil {
			return nil, backendErr(q, err)
		}
		a.Enabled = enabled != 0
		a.IssueDate = unixTime(issueDate)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr(q, err)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
