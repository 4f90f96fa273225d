package twolegged

import (
	"errors"
	"testing"

	"github.com/tandemlab/oauthstore"
)

func userRef(id int64) *int64 { return &id }

func TestSecretsForSignature(t *testing.T) {
	s := New()
	err := s.Add("http://api.example.org/v1/", nil, "", Credentials{
		ConsumerKey:      "ck",
		ConsumerSecret:   "cs",
		SignatureMethods: []string{"HMAC-SHA1"},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	creds, err := s.SecretsForSignature("http://api.example.org/v1/items/list", 12, "")
	if err != nil {
		t.Fatalf("SecretsForSignature: %v", err)
	}
	if creds.ConsumerKey != "ck" || creds.ConsumerSecret != "cs" {
		t.Errorf("creds = %+v", creds)
	}
	if creds.Token != "" || creds.TokenSecret != "" {
		t.Errorf("two-legged lookup returned token material: %+v", creds)
	}

	if _, err := s.SecretsForSignature("http://other.example.org/v1/", 12, ""); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("unregistered host: %v", err)
	}
	// "/v1/" is not a prefix of "/v10/".
	if _, err := s.SecretsForSignature("http://api.example.org/v10/items", 12, ""); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("sibling path: %v", err)
	}
}

func TestAddValidation(t *testing.T) {
	s := New()
	err := s.Add("http://api.example.org/", nil, "", Credentials{})
	if !errors.Is(err, oauthstore.ErrInvalidArgument) {
		t.Errorf("missing consumer key: %v", err)
	}
}

func TestOwnedBeatsShared(t *testing.T) {
	s := New()
	if err := s.Add("http://api.example.org/", nil, "", Credentials{ConsumerKey: "ck-shared"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add("http://api.example.org/", userRef(12), "", Credentials{ConsumerKey: "ck-owned"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	creds, err := s.SecretsForSignature("http://api.example.org/items", 12, "")
	if err != nil {
		t.Fatalf("SecretsForSignature: %v", err)
	}
	if creds.ConsumerKey != "ck-owned" {
		t.Errorf("matched %q, want the user-owned entry", creds.ConsumerKey)
	}

	creds, err = s.SecretsForSignature("http://api.example.org/items", 99, "")
	if err != nil {
		t.Fatalf("SecretsForSignature: %v", err)
	}
	if creds.ConsumerKey != "ck-shared" {
		t.Errorf("matched %q, want the shared entry", creds.ConsumerKey)
	}
}

func TestLongestPathWins(t *testing.T) {
	s := New()
	if err := s.Add("http://api.example.org/", nil, "", Credentials{ConsumerKey: "ck-root"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add("http://api.example.org/v2/", nil, "", Credentials{ConsumerKey: "ck-v2"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	creds, err := s.SecretsForSignature("http://api.example.org/v2/items", 12, "")
	if err != nil {
		t.Fatalf("SecretsForSignature: %v", err)
	}
	if creds.ConsumerKey != "ck-v2" {
		t.Errorf("matched %q, want the longer path", creds.ConsumerKey)
	}
}

func TestNameScoping(t *testing.T) {
	s := New()
	if err := s.Add("http://api.example.org/", nil, "sync", Credentials{ConsumerKey: "ck-named"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := s.SecretsForSignature("http://api.example.org/items", 12, ""); !errors.Is(err, oauthstore.ErrNotFound) {
		t.Errorf("default-name lookup found the named entry: %v", err)
	}
	if _, err := s.SecretsForSignature("http://api.example.org/items", 12, "sync"); err != nil {
		t.Errorf("named lookup: %v", err)
	}
}
