package sqlstore

import (
	"errors"
	"testing"
	"time"

	"github.com/tandemlab/oauthstore"
)

func TestAddServerTokenAndFetch(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-remote", "http://remote.example.org/api/", userRef(12))

	err := s.AddServerToken("ck-remote", oauthstore.TokenTypeAccess, "at-1", "sec-1", 12, oauthstore.ServerTokenOptions{})
	if err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}

	info, err := s.ServerToken("ck-remote", "at-1", 12)
	if err != nil {
		t.Fatalf("ServerToken: %v", err)
	}
	if info.TokenSecret != "sec-1" {
		t.Errorf("token secret = %q", info.TokenSecret)
	}
	if info.ConsumerSecret != "secret-ck-remote" {
		t.Errorf("joined consumer secret = %q", info.ConsumerSecret)
	}
	if !info.ExpiresAt.Equal(oauthstore.TTLInfinite) {
		t.Errorf("access token expiry = %v, want the never-expires sentinel", info.ExpiresAt)
	}

	got, err := s.ServerTokenSecrets("ck-remote", "at-1", oauthstore.TokenTypeAccess, 12, "")
	if err != nil {
		t.Fatalf("ServerTokenSecrets: %v", err)
	}
	if got.Token != "at-1" || got.TokenSecret != "sec-1" {
		t.Errorf("secrets = %q/%q", got.Token, got.TokenSecret)
	}
}

func TestAddServerTokenValidation(t *testing.T) {
	s := newTestStore(t)

	err := s.AddServerToken("ck", "session", "tok", "sec", 12, oauthstore.ServerTokenOptions{})
	if !errors.Is(err, oauthstore.ErrInvalidArgument) {
		t.Errorf("bad token type: %v", err)
	}
	err = s.AddServerToken("ck-missing", oauthstore.TokenTypeAccess, "tok", "sec", 12, oauthstore.ServerTokenOptions{})
	if !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("unknown server: %v", err)
	}
}

func TestAddServerTokenReplacesSameName(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-rep", "http://remote.example.org/", userRef(12))

	if err := s.AddServerToken("ck-rep", oauthstore.TokenTypeAccess, "old", "old-sec", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("first AddServerToken: %v", err)
	}
	if err := s.AddServerToken("ck-rep", oauthstore.TokenTypeAccess, "new", "new-sec", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("second AddServerToken: %v", err)
	}

	if _, err := s.ServerToken("ck-rep", "old", 12); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("replaced token still readable: %v", err)
	}
	if _, err := s.ServerToken("ck-rep", "new", 12); err != nil {
		t.Errorf("replacement token: %v", err)
	}
	if n, _ := s.CountServerTokens("ck-rep"); n != 1 {
		t.Errorf("count = %d after replacement, want 1", n)
	}
}

func TestAddServerTokenDuplicateValue(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-dup2", "http://remote.example.org/", userRef(12))

	if err := s.AddServerToken("ck-dup2", oauthstore.TokenTypeAccess, "tok", "sec", 12, oauthstore.ServerTokenOptions{Name: "a"}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}
	// Same token value under a different name hits the uniqueness guard.
	err := s.AddServerToken("ck-dup2", oauthstore.TokenTypeAccess, "tok", "sec", 12, oauthstore.ServerTokenOptions{Name: "b"})
	if !errors.Is(err, oauthstore.ErrConflict) {
		t.Errorf("duplicate token value: %v", err)
	}
}

func TestServerTokenRequestTypeDefaults(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-req", "http://remote.example.org/", userRef(12))

	if err := s.AddServerToken("ck-req", oauthstore.TokenTypeRequest, "rt", "sec", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}

	// Request tokens take the request-token TTL, not the infinite default.
	info, err := s.ServerTokenSecrets("ck-req", "rt", oauthstore.TokenTypeRequest, 12, "")
	if err != nil {
		t.Fatalf("ServerTokenSecrets: %v", err)
	}
	if info.ExpiresAt.Equal(oauthstore.TTLInfinite) {
		t.Error("request token never expires")
	}

	advance(s, 2*time.Hour)
	if _, err := s.ServerTokenSecrets("ck-req", "rt", oauthstore.TokenTypeRequest, 12, ""); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("expired request token still served: %v", err)
	}
}

func TestServerTokenNameScoping(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-name", "http://remote.example.org/", userRef(12))

	if err := s.AddServerToken("ck-name", oauthstore.TokenTypeAccess, "tok-main", "sec", 12, oauthstore.ServerTokenOptions{Name: "sync"}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}
	if _, err := s.ServerTokenSecrets("ck-name", "tok-main", oauthstore.TokenTypeAccess, 12, ""); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("default-name lookup found the named token: %v", err)
	}
	if _, err := s.ServerTokenSecrets("ck-name", "tok-main", oauthstore.TokenTypeAccess, 12, "sync"); err != nil {
		t.Errorf("named lookup: %v", err)
	}
}

func TestListServerTokens(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-l1", "http://alpha.example.org/", userRef(12))
	addServer(t, s, "ck-l2", "http://beta.example.org/", userRef(12))

	if err := s.AddServerToken("ck-l1", oauthstore.TokenTypeAccess, "t1", "s1", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}
	if err := s.AddServerToken("ck-l2", oauthstore.TokenTypeAccess, "t2", "s2", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}
	// Request tokens never show up in the access listing.
	if err := s.AddServerToken("ck-l1", oauthstore.TokenTypeRequest, "t3", "s3", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}

	list, err := s.ListServerTokens(12)
	if err != nil {
		t.Fatalf("ListServerTokens: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d tokens, want 2", len(list))
	}
	if list[0].ServerURIHost != "alpha.example.org" || list[1].ServerURIHost != "beta.example.org" {
		t.Errorf("listing order: %q, %q", list[0].ServerURIHost, list[1].ServerURIHost)
	}
}

func TestDeleteServerToken(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-d", "http://remote.example.org/", userRef(12))
	if err := s.AddServerToken("ck-d", oauthstore.TokenTypeAccess, "tok", "sec", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}

	if err := s.DeleteServerToken("ck-d", "tok", 99, false); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("delete by another user: %v", err)
	}
	if err := s.DeleteServerToken("ck-d", "tok", 12, false); err != nil {
		t.Errorf("delete by owner: %v", err)
	}
	if _, err := s.ServerToken("ck-d", "tok", 12); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("token survived delete: %v", err)
	}
}

func TestSetServerTokenTTL(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-ttl", "http://remote.example.org/", userRef(12))
	if err := s.AddServerToken("ck-ttl", oauthstore.TokenTypeAccess, "tok", "sec", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}

	if err := s.SetServerTokenTTL("ck-ttl", "tok", time.Hour); err != nil {
		t.Fatalf("SetServerTokenTTL: %v", err)
	}
	advance(s, 2*time.Hour)
	if _, err := s.ServerToken("ck-ttl", "tok", 12); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("token outlived its TTL: %v", err)
	}
}

func TestSetServerTokenTTLZeroDeletes(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-ttl0", "http://remote.example.org/", userRef(12))
	if err := s.AddServerToken("ck-ttl0", oauthstore.TokenTypeAccess, "tok", "sec", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}
	if err := s.SetServerTokenTTL("ck-ttl0", "tok", 0); err != nil {
		t.Fatalf("SetServerTokenTTL(0): %v", err)
	}
	if _, err := s.ServerToken("ck-ttl0", "tok", 12); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("token survived TTL 0: %v", err)
	}
}

func TestDeleteServerCascadesTokens(t *testing.T) {
	s := newTestStore(t)
	addServer(t, s, "ck-casc", "http://remote.example.org/", userRef(12))
	if err := s.AddServerToken("ck-casc", oauthstore.TokenTypeAccess, "tok", "sec", 12, oauthstore.ServerTokenOptions{}); err != nil {
		t.Fatalf("AddServerToken: %v", err)
	}
	if err := s.DeleteServer("ck-casc", 12, false); err != nil {
		t.Fatalf("DeleteServer: %v", err)
	}
	if n, err := s.CountServerTokens("ck-casc"); err != nil || n != 0 {
		t.Errorf("obtained tokens after server delete = %d, %v", n, err)
	}
}
