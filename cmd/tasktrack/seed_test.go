package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tasktrack/internal/store"
)

const sampleSeed = `
users:
  - username: alice
    email: alice@example.com
    password: correct-horse-battery
    roles: [admin]
  - username: bob
    email: bob@example.com
    password: another-long-secret
tasks:
  - name: Draw the logo
    author: alice
    assignee: bob
  - name: Ship the release
    author: bob
    transitions: [start, complete]
`

func openSeedStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestParseSeedFileRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "user without name", doc: "users:\n  - email: x@example.com\n", want: "username is required"},
		{name: "task without name", doc: "tasks:\n  - author: alice\n", want: "name is required"},
		{name: "task without author", doc: "tasks:\n  - name: x\n", want: "author is required"},
		{name: "bad yaml", doc: "users: [", want: "parse seed file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeedFile([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestApplySeedCreatesUsersAndTasks(t *testing.T) {
	st := openSeedStore(t)
	doc, err := parseSeedFile([]byte(sampleSeed))
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}

	ctx := context.Background()
	result, err := applySeed(ctx, st, doc, time.Now().UTC())
	if err != nil {
		t.Fatalf("apply seed: %v", err)
	}
	if result.UsersCreated != 2 || result.TasksCreated != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	tasks, total, err := st.ListTasks(ctx, store.ListFilter{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 tasks, got %d", total)
	}
	if tasks[0].AssignedUserID == nil || tasks[0].Status != "new" {
		t.Fatalf("unexpected first task: %+v", tasks[0])
	}
	if tasks[1].Status != "completed" {
		t.Fatalf("expected transitions applied, got %q", tasks[1].Status)
	}

	again, err := applySeed(ctx, st, seedFile{Users: doc.Users}, time.Now().UTC())
	if err != nil {
		t.Fatalf("reapply seed: %v", err)
	}
	if again.UsersCreated != 0 || again.UsersSkipped != 2 {
		t.Fatalf("expected existing users skipped, got %+v", again)
	}
}

func TestApplySeedRejectsUnknownAuthorAndBadTransition(t *testing.T) {
	st := openSeedStore(t)
	ctx := context.Background()

	_, err := applySeed(ctx, st, seedFile{Tasks: []seedTask{{Name: "orphan", Author: "nobody"}}}, time.Now())
	if err == nil || !strings.Contains(err.Error(), "unknown user") {
		t.Fatalf("expected unknown user error, got %v", err)
	}

	doc := seedFile{
		Users: []seedUser{{Username: "carol", Email: "carol@example.com", Password: "long-enough-secret"}},
		Tasks: []seedTask{{Name: "stuck", Author: "carol", Transitions: []string{"complete"}}},
	}
	if _, err := applySeed(ctx, st, doc, time.Now()); err == nil {
		t.Fatal("expected transition error")
	}
}
