// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/pollmaker/lib/ref"
)

func writeSessionFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing session file: %v", err)
	}
	return path
}

func TestLoadSession(t *testing.T) {
	path := writeSessionFile(t, `{"homeserver_url":"https://matrix.example.org","user_id":"@pollmaker:example.org","access_token":"syt_secret"}`)

	client, session, err := LoadSession(path, "", discardLogger())
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	defer session.Close()
	if client == nil {
		t.Fatal("LoadSession returned a nil client")
	}
	if session.UserID() != ref.MustParseUserID("@pollmaker:example.org") {
		t.Errorf("UserID = %s", session.UserID())
	}
}

func TestLoadSession_HomeserverOverride(t *testing.T) {
	path := writeSessionFile(t, `{"homeserver_url":"not a url","user_id":"@pollmaker:example.org","access_token":"syt_secret"}`)
	_, session, err := LoadSession(path, "http://localhost:8008", discardLogger())
	if err != nil {
		t.Fatalf("LoadSession with override: %v", err)
	}
	session.Close()
}

func TestLoadSession_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"not json", `homeserver_url: x`, "parsing session"},
		{"empty token", `{"homeserver_url":"https://m.example.org","user_id":"@p:example.org","access_token":""}`, "empty access token"},
		{"bad user", `{"homeserver_url":"https://m.example.org","user_id":"pollmaker","access_token":"t"}`, "invalid user_id"},
		{"bad homeserver", `{"homeserver_url":"ftp://m.example.org","user_id":"@p:example.org","access_token":"t"}`, "creating matrix client"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := LoadSession(writeSessionFile(t, test.content), "", discardLogger())
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("LoadSession = %v, want error containing %q", err, test.want)
			}
		})
	}

	if _, _, err := LoadSession(filepath.Join(t.TempDir(), "missing.json"), "", discardLogger()); err == nil {
		t.Error("LoadSession accepted a missing file")
	}
}

func TestValidateSession(t *testing.T) {
	bot := ref.MustParseUserID("@pollmaker:example.org")

	userID, err := ValidateSession(context.Background(), &scriptedSession{user: bot, whoami: bot})
	if err != nil || userID != bot {
		t.Errorf("ValidateSession = %s, %v", userID, err)
	}

	other := ref.MustParseUserID("@someone:example.org")
	if _, err := ValidateSession(context.Background(), &scriptedSession{user: bot, whoami: other}); err == nil {
		t.Error("ValidateSession accepted a token for a different account")
	}
	if _, err := ValidateSession(context.Background(), &scriptedSession{user: bot}); err == nil {
		t.Error("ValidateSession accepted a rejected token")
	}
}
