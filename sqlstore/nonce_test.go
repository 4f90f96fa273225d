package sqlstore

import (
	"errors"
	"testing"

	"github.com/tandemlab/oauthstore"
)

func TestCheckNonce(t *testing.T) {
	s := newTestStore(t)
	now := s.unixNow()

	if err := s.CheckNonce("ck", "tok", now, "n1"); err != nil {
		t.Fatalf("first nonce: %v", err)
	}
	// Same timestamp, different nonce: fine.
	if err := s.CheckNonce("ck", "tok", now, "n2"); err != nil {
		t.Errorf("second nonce at same timestamp: %v", err)
	}
	// Exact repetition is a replay.
	if err := s.CheckNonce("ck", "tok", now, "n1"); !errors.Is(err, oauthstore.ErrReplay) {
		t.Errorf("replayed nonce: %v", err)
	}
	// Another consumer key has its own window.
	if err := s.CheckNonce("ck2", "tok", now, "n1"); err != nil {
		t.Errorf("same nonce under another key: %v", err)
	}
}

func TestCheckNonceTimestampWindow(t *testing.T) {
	s := newTestStore(t)
	now := s.unixNow()
	skew := s.maxSkew

	if err := s.CheckNonce("ck", "tok", now, "n1"); err != nil {
		t.Fatalf("seed nonce: %v", err)
	}

	// Lagging by exactly the window is still accepted.
	if err := s.CheckNonce("ck", "tok", now-skew, "edge"); err != nil {
		t.Errorf("timestamp at window edge: %v", err)
	}
	// One second past the window is out of sequence.
	if err := s.CheckNonce("ck", "tok", now-skew-1, "late"); !errors.Is(err, oauthstore.ErrReplay) {
		t.Errorf("timestamp past window: %v", err)
	}
	// Moving forward is always fine.
	if err := s.CheckNonce("ck", "tok", now+skew+100, "future"); err != nil {
		t.Errorf("future timestamp: %v", err)
	}
}

func TestCheckNoncePurgesOldRows(t *testing.T) {
	s := newTestStore(t)
	now := s.unixNow()

	if err := s.CheckNonce("ck", "tok", now, "n1"); err != nil {
		t.Fatalf("seed nonce: %v", err)
	}
	if err := s.CheckNonce("ck", "tok", now+2*s.maxSkew, "n2"); err != nil {
		t.Fatalf("advance window: %v", err)
	}

	var n int
	if err := s.db.QueryRow(s.q(`SELECT COUNT(*) FROM nonces WHERE consumer_key = ?`), "ck").Scan(&n); err != nil {
		t.Fatalf("count nonces: %v", err)
	}
	if n != 1 {
		t.Errorf("%d nonce rows after purge, want 1", n)
	}
}
