// Package twolegged is a static, in-memory signature store for two-legged
// OAuth: consumer key and secret are fixed at configuration time and no
// token exchange ever happens. It serves signing lookups only; the full
// lifecycle lives in sqlstore.
package twolegged

import (
	"net/url"
	"strings"
	"sync"

	"github.com/tandemlab/oauthstore"
)

// Credentials is one configured consumer key/secret pair. Token and
// TokenSecret are usually empty in two-legged setups but may be pinned
// for servers that hand out long-lived tokens out of band.
type Credentials struct {
	ConsumerKey      string
	ConsumerSecret   string
	Token            string
	TokenSecret      string
	SignatureMethods []string
}

type entry struct {
	host   string
	path   string
	userID *int64
	name   string
	creds  Credentials
}

// Store resolves signing credentials from a fixed set of registrations.
// Matching follows the same rules as the SQL-backed resolver: equal host,
// registered path a prefix of the request path, user-owned entries beat
// shared ones, longer paths beat shorter ones.
type Store struct {
	mu      sync.RWMutex
	entries []entry
}

var _ oauthstore.SignatureStore = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Add registers credentials for all requests under serverURI. A nil userID
// makes the entry shared; name scopes it the same way named server tokens
// are scoped.
func (s *Store) Add(serverURI string, userID *int64, name string, creds Credentials) error {
	host, path, err := splitURI(serverURI)
	if err != nil {
		return err
	}
	if creds.ConsumerKey == "" {
		return oauthstore.Errorf(oauthstore.ErrInvalidArgument, "the field \"consumer_key\" must be set and non empty")
	}
	var owner *int64
	if userID != nil {
		id := *userID
		owner = &id
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry{host: host, path: path, userID: owner, name: name, creds: creds})
	s.mu.Unlock()
	return nil
}

// SecretsForSignature returns the signing material for an outgoing request
// to uri on behalf of userID.
func (s *Store) SecretsForSignature(uri string, userID int64, name string) (*oauthstore.SignatureCredentials, error) {
	host, path, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *entry
	for i := range s.entries {
		e := &s.entries[i]
		if e.host != host || e.name != name {
			continue
		}
		if e.userID != nil && *e.userID != userID {
			continue
		}
		if !strings.HasPrefix(path, e.path) {
			continue
		}
		if best == nil || betterMatch(e, best) {
			best = e
		}
	}
	if best == nil {
		return nil, oauthstore.Errorf(oauthstore.ErrNotFound, "no server tokens available for %q", uri)
	}

	methods := make([]string, len(best.creds.SignatureMethods))
	copy(methods, best.creds.SignatureMethods)
	return &oauthstore.SignatureCredentials{
		ConsumerKey:      best.creds.ConsumerKey,
		ConsumerSecret:   best.creds.ConsumerSecret,
		Token:            best.creds.Token,
		TokenSecret:      best.creds.TokenSecret,
		SignatureMethods: methods,
	}, nil
}

// betterMatch reports whether a beats b: user-owned over shared, then the
// longer registered path.
func betterMatch(a, b *entry) bool {
	if (a.userID != nil) != (b.userID != nil) {
		return a.userID != nil
	}
	return len(a.path) > len(b.path)
}

func splitURI(raw string) (host, path string, err error) {
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
