package sqlstore

import (
	"fmt"
	"testing"

	"github.com/tandemlab/oauthstore"
)

func TestAddLogAndList(t *testing.T) {
	s := newTestStore(t)

	keys := oauthstore.LogKeys{ServerConsumerKey: "ck-in", ServerToken: "tok-in"}
	if err := s.AddLog(keys, "GET /request_token", "200 OK", "GET&http...", "ok", userRef(12), "192.0.2.7"); err != nil {
		t.Fatalf("AddLog: %v", err)
	}

	entries, err := s.ListLog(oauthstore.LogFilter{}, 12)
	if err != nil {
		t.Fatalf("ListLog: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ServerConsumerKey != "ck-in" || e.ServerToken != "tok-in" {
		t.Errorf("correlation keys = %q/%q", e.ServerConsumerKey, e.ServerToken)
	}
	if e.ClientConsumerKey != "" || e.ClientToken != "" {
		t.Errorf("absent keys came back non-empty: %q/%q", e.ClientConsumerKey, e.ClientToken)
	}
	if e.RemoteIP != "192.0.2.7" {
		t.Errorf("remote ip = %q", e.RemoteIP)
	}
	if e.UserID == nil || *e.UserID != 12 {
		t.Errorf("user = %v", e.UserID)
	}
}

func TestAddLogDefaultsAndSanitizing(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddLog(oauthstore.LogKeys{}, "req \xff\xfe body", "", "", "", nil, ""); err != nil {
		t.Fatalf("AddLog: %v", err)
	}
	entries, err := s.ListLog(oauthstore.LogFilter{}, 12)
	if err != nil {
		t.Fatalf("ListLog: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].RemoteIP != "0.0.0.0" {
		t.Errorf("remote ip = %q, want the unknown-peer sentinel", entries[0].RemoteIP)
	}
	if entries[0].Received != "req . body" {
		t.Errorf("received = %q, want invalid bytes replaced", entries[0].Received)
	}
	if entries[0].UserID != nil {
		t.Errorf("system entry carries user %v", entries[0].UserID)
	}
}

func TestListLogVisibility(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddLog(oauthstore.LogKeys{}, "mine", "", "", "", userRef(12), ""); err != nil {
		t.Fatalf("AddLog: %v", err)
	}
	if err := s.AddLog(oauthstore.LogKeys{}, "theirs", "", "", "", userRef(99), ""); err != nil {
		t.Fatalf("AddLog: %v", err)
	}
	if err := s.AddLog(oauthstore.LogKeys{}, "system", "", "", "", nil, ""); err != nil {
		t.Fatalf("AddLog: %v", err)
	}

	entries, err := s.ListLog(oauthstore.LogFilter{}, 12)
	if err != nil {
		t.Fatalf("ListLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want own plus system", len(entries))
	}
	for _, e := range entries {
		if e.Received == "theirs" {
			t.Error("listing leaked another user's entry")
		}
	}
}

func TestListLogFilterAndPaging(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < logPageSize+10; i++ {
		keys := oauthstore.LogKeys{ClientConsumerKey: "ck-out"}
		if err := s.AddLog(keys, fmt.Sprintf("entry %d", i), "", "", "", userRef(12), ""); err != nil {
			t.Fatalf("AddLog: %v", err)
		}
	}
	if err := s.AddLog(oauthstore.LogKeys{ClientConsumerKey: "ck-other"}, "other", "", "", "", userRef(12), ""); err != nil {
		t.Fatalf("AddLog: %v", err)
	}

	entries, err := s.ListLog(oauthstore.LogFilter{ClientConsumerKey: "ck-out"}, 12)
	if err != nil {
		t.Fatalf("ListLog: %v", err)
	}
	if len(entries) != logPageSize {
		t.Fatalf("got %d entries, want the %d-row page", len(entries), logPageSize)
	}
	// Newest first.
	if entries[0].Received != fmt.Sprintf("entry %d", logPageSize+9) {
		t.Errorf("first entry = %q", entries[0].Received)
	}
	if entries[0].ID < entries[1].ID {
		t.Error("entries not in descending id order")
	}
}
