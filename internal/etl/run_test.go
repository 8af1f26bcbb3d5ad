package etl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tankwatch/tankwatch/internal/db"
	"github.com/tankwatch/tankwatch/internal/models"
)

type writeCall struct {
	table string
	mode  db.WriteMode
	keys  []string
}

type fakeWriter struct {
	schemaErr error
	writeErr  map[string]error
	calls     []writeCall
}

func (f *fakeWriter) EnsureSchema(ctx context.Context) error {
	return f.schemaErr
}

func (f *fakeWriter) Write(ctx context.Context, table string, rows interface{}, mode db.WriteMode, conflictKeys []string) error {
	f.calls = append(f.calls, writeCall{table, mode, conflictKeys})
	return f.writeErr[table]
}

type fakePostSource struct {
	posts []models.Post
	err   error
}

func (f *fakePostSource) FetchPosts(ctx context.Context) ([]models.Post, []string, error) {
	return f.posts, nil, f.err
}

type fakeCommentSource struct {
	comments []models.Comment
	err      error
}

func (f *fakeCommentSource) FetchComments(ctx context.Context) ([]models.Comment, []string, error) {
	return f.comments, nil, f.err
}

type fakeEngine struct {
	posts []models.Post
	rows  []models.PostAnalysis
}

func (f *fakeEngine) FindNewPosts(ctx context.Context) []models.Post {
	return f.posts
}

func (f *fakeEngine) Enrich(ctx context.Context, posts []models.Post) ([]models.PostAnalysis, []string) {
	return f.rows, nil
}

func TestRun(t *testing.T) {
	writer := &fakeWriter{}
	runner := NewRunner(
		&fakePostSource{posts: []models.Post{{ID: "p1"}}},
		&fakeCommentSource{comments: []models.Comment{{ID: "c1", PostID: "p1"}}},
		&fakeEngine{
			posts: []models.Post{{ID: "p1"}},
			rows:  []models.PostAnalysis{{ID: "p1"}},
		},
		writer,
	)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(writer.calls) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(writer.calls))
	}
	expected := []string{"posts", "posts_ai_analysis", "comments"}
	for i, table := range expected {
		call := writer.calls[i]
		if call.table != table {
			t.Errorf("write %d: expected table %s, got %s", i, table, call.table)
		}
		if call.mode != db.ModeUpsert {
			t.Errorf("write %d: expected upsert mode, got %v", i, call.mode)
		}
		if len(call.keys) != 1 || call.keys[0] != "id" {
			t.Errorf("write %d: expected conflict key id, got %v", i, call.keys)
		}
	}
}

func TestRunSchemaFailureAborts(t *testing.T) {
	writer := &fakeWriter{schemaErr: errors.New("permission denied")}
	runner := NewRunner(&fakePostSource{}, &fakeCommentSource{}, &fakeEngine{}, writer)

	if err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected error when schema bootstrap fails")
	}
	if len(writer.calls) != 0 {
		t.Errorf("expected no writes after schema failure, got %d", len(writer.calls))
	}
}

func TestRunStageFailureContinues(t *testing.T) {
	writer := &fakeWriter{}
	runner := NewRunner(
		&fakePostSource{err: errors.New("listing down")},
		&fakeCommentSource{comments: []models.Comment{{ID: "c1"}}},
		&fakeEngine{
			posts: []models.Post{{ID: "p1"}},
			rows:  []models.PostAnalysis{{ID: "p1"}},
		},
		writer,
	)

	err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error reporting the failed stage")
	}
	if !strings.Contains(err.Error(), "posts") {
		t.Errorf("expected failed stage named in error, got %v", err)
	}

	// remaining stages still ran
	tables := make([]string, len(writer.calls))
	for i, c := range writer.calls {
		tables[i] = c.table
	}
	if len(tables) != 2 || tables[0] != "posts_ai_analysis" || tables[1] != "comments" {
		t.Errorf("expected analysis and comments written despite post failure, got %v", tables)
	}
}

func TestRunWriteFailureReported(t *testing.T) {
	writer := &fakeWriter{writeErr: map[string]error{"comments": errors.New("deadlock")}}
	runner := NewRunner(
		&fakePostSource{posts: []models.Post{{ID: "p1"}}},
		&fakeCommentSource{comments: []models.Comment{{ID: "c1"}}},
		&fakeEngine{},
		writer,
	)

	err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when a write fails")
	}
	if !strings.Contains(err.Error(), "comments") {
		t.Errorf("expected comments stage named in error, got %v", err)
	}
}

func TestRunSkipsEmptyWrites(t *testing.T) {
	writer := &fakeWriter{}
	runner := NewRunner(&fakePostSource{}, &fakeCommentSource{}, &fakeEngine{}, writer)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.calls) != 0 {
		t.Errorf("expected no writes for empty results, got %d", len(writer.calls))
	}
}
