package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tankwatch/tankwatch/pkg/config"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.RedditConfig{
		Subreddit: "WorldofTanks",
		Username:  "tester",
		ClientID:  "id",
		Secret:    "secret",
		Timeout:   5,
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	client.baseURL = server.URL
	client.tokenURL = server.URL + "/api/v1/access_token"
	return client, server
}

func tokenHandler(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": "tok",
		"expires_in":   3600,
	})
}

func TestNewest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		if u, p, ok := r.BasicAuth(); !ok || u != "id" || p != "secret" {
			t.Errorf("token request should carry basic auth, got %s:%s", u, p)
		}
		tokenHandler(w)
	})
	mux.HandleFunc("/r/WorldofTanks/new", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("listing request should carry bearer token, got %q", got)
		}
		if r.URL.Query().Get("raw_json") != "1" {
			t.Error("raw_json=1 should always be requested")
		}
		fmt.Fprint(w, `{
			"data": {
				"after": "",
				"children": [
					{"kind": "t3", "data": {
						"id": "p1", "title": "First", "author": "alice",
						"link_flair_text": "Discussion", "selftext": "body",
						"subreddit": "WorldofTanks", "score": 10,
						"num_comments": 3, "created_utc": 1700000000
					}},
					{"kind": "t3", "data": {
						"id": "p2", "title": "Second", "author": "bob",
						"selftext": "", "subreddit": "WorldofTanks",
						"score": 1, "num_comments": 0, "created_utc": 1700000500
					}}
				]
			}
		}`)
	})

	client, _ := testClient(t, mux)
	subs, err := client.Newest(context.Background(), 10)
	if err != nil {
		t.Fatalf("Newest() error: %v", err)
	}

	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	if subs[0].ID != "p1" || subs[0].Flair != "Discussion" || subs[0].NumComments != 3 {
		t.Errorf("unexpected first submission: %+v", subs[0])
	}
	if subs[1].ID != "p2" || subs[1].Author != "bob" {
		t.Errorf("unexpected second submission: %+v", subs[1])
	}
}

func TestNewestRespectsLimit(t *testing.T) {
	pages := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenHandler(w)
	})
	mux.HandleFunc("/r/WorldofTanks/new", func(w http.ResponseWriter, r *http.Request) {
		pages++
		fmt.Fprintf(w, `{
			"data": {
				"after": "cursor%d",
				"children": [
					{"kind": "t3", "data": {"id": "p%d", "title": "t", "author": "a",
						"subreddit": "WorldofTanks", "created_utc": 1700000000}}
				]
			}
		}`, pages, pages)
	})

	client, _ := testClient(t, mux)
	subs, err := client.Newest(context.Background(), 3)
	if err != nil {
		t.Fatalf("Newest() error: %v", err)
	}
	if len(subs) != 3 {
		t.Errorf("expected exactly 3 submissions, got %d", len(subs))
	}
	if pages != 3 {
		t.Errorf("expected 3 listing pages, got %d", pages)
	}
}

func TestSubmission(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenHandler(w)
	})
	mux.HandleFunc("/comments/p1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"data": {"children": [
				{"kind": "t3", "data": {
					"id": "p1", "title": "Thread", "author": "alice",
					"link_flair_text": "Question", "selftext": "help",
					"subreddit": "WorldofTanks", "score": 7,
					"num_comments": 2, "created_utc": 1700000000
				}}
			]}},
			{"data": {"children": [
				{"kind": "t1", "data": {
					"id": "c1", "author": "bob", "body": "answer", "score": 4,
					"created_utc": 1700000100, "parent_id": "t3_p1",
					"replies": {"data": {"children": [
						{"kind": "t1", "data": {
							"id": "c2", "author": "carol", "body": "followup",
							"score": 1, "created_utc": 1700000200,
							"parent_id": "t1_c1", "replies": ""
						}}
					]}}
				}}
			]}}
		]`)
	})

	client, _ := testClient(t, mux)
	sub, err := client.Submission(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Submission() error: %v", err)
	}

	if sub.ID != "p1" || sub.Flair != "Question" {
		t.Errorf("unexpected submission: %+v", sub)
	}
	if len(sub.Comments) != 1 || sub.Comments[0].ID != "c1" {
		t.Fatalf("expected one top-level comment c1")
	}
	if len(sub.Comments[0].Replies) != 1 || sub.Comments[0].Replies[0].ID != "c2" {
		t.Errorf("c2 should be nested under c1")
	}
}

func TestReplaceMore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenHandler(w)
	})
	calls := 0
	mux.HandleFunc("/api/morechildren", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("link_id") != "t3_p1" {
			t.Errorf("link_id should be t3_p1, got %q", r.URL.Query().Get("link_id"))
		}
		switch calls {
		case 1:
			// First expansion returns one comment and a nested stub
			fmt.Fprint(w, `{"json": {"data": {"things": [
				{"kind": "t1", "data": {"id": "c5", "author": "erin",
					"body": "late", "score": 1, "created_utc": 1700001000,
					"parent_id": "t3_p1"}},
				{"kind": "more", "data": {"parent_id": "t1_c5", "children": ["c6"]}}
			]}}}`)
		default:
			fmt.Fprint(w, `{"json": {"data": {"things": [
				{"kind": "t1", "data": {"id": "c6", "author": "frank",
					"body": "deeper", "score": 0, "created_utc": 1700001100,
					"parent_id": "t1_c5"}}
			]}}}`)
		}
	})

	client, _ := testClient(t, mux)
	sub := newSubmission(client, submissionData{ID: "p1"})
	sub.pending = []*moreStub{{parentFullname: "t3_p1", children: []string{"c5"}}}

	if err := sub.ReplaceMore(context.Background()); err != nil {
		t.Fatalf("ReplaceMore() error: %v", err)
	}

	if calls != 2 {
		t.Errorf("expected 2 morechildren calls (nested stub re-expanded), got %d", calls)
	}
	if len(sub.Comments) != 1 || sub.Comments[0].ID != "c5" {
		t.Fatalf("c5 should be grafted at top level")
	}
	if len(sub.Comments[0].Replies) != 1 || sub.Comments[0].Replies[0].ID != "c6" {
		t.Errorf("c6 should be grafted under c5")
	}
	if len(sub.pending) != 0 {
		t.Errorf("no stubs should remain after ReplaceMore")
	}
}

func TestReplaceMoreContinueThread(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenHandler(w)
	})
	continuations := 0
	mux.HandleFunc("/comments/p1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("comment") == "" {
			// Initial fetch: c1 sits at the depth cutoff, its replies
			// reduced to a childless more stub
			fmt.Fprint(w, `[
				{"data": {"children": [
					{"kind": "t3", "data": {"id": "p1", "title": "Thread",
						"author": "alice", "subreddit": "WorldofTanks",
						"num_comments": 2, "created_utc": 1700000000}}
				]}},
				{"data": {"children": [
					{"kind": "t1", "data": {
						"id": "c1", "author": "bob", "body": "shallow", "score": 2,
						"created_utc": 1700000100, "parent_id": "t3_p1",
						"replies": {"data": {"children": [
							{"kind": "more", "data": {"count": 0,
								"parent_id": "t1_c1", "children": []}}
						]}}
					}}
				]}}
			]`)
			return
		}

		continuations++
		if got := r.URL.Query().Get("comment"); got != "c1" {
			t.Errorf("continuation should focus the parent comment, got %q", got)
		}
		fmt.Fprint(w, `[
			{"data": {"children": [
				{"kind": "t3", "data": {"id": "p1", "title": "Thread",
					"author": "alice", "subreddit": "WorldofTanks",
					"num_comments": 2, "created_utc": 1700000000}}
			]}},
			{"data": {"children": [
				{"kind": "t1", "data": {
					"id": "c1", "author": "bob", "body": "shallow", "score": 2,
					"created_utc": 1700000100, "parent_id": "t3_p1",
					"replies": {"data": {"children": [
						{"kind": "t1", "data": {
							"id": "c2", "author": "carol", "body": "deep", "score": 1,
							"created_utc": 1700000200, "parent_id": "t1_c1",
							"replies": ""
						}}
					]}}
				}}
			]}}
		]`)
	})

	client, _ := testClient(t, mux)
	sub, err := client.Submission(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Submission() error: %v", err)
	}
	if err := sub.ReplaceMore(context.Background()); err != nil {
		t.Fatalf("ReplaceMore() error: %v", err)
	}

	if continuations != 1 {
		t.Fatalf("expected 1 continuation fetch, got %d", continuations)
	}
	if len(sub.Comments) != 1 || sub.Comments[0].ID != "c1" {
		t.Fatalf("expected one top-level comment c1")
	}
	if len(sub.Comments[0].Replies) != 1 || sub.Comments[0].Replies[0].ID != "c2" {
		t.Errorf("replies below the depth cutoff should be fetched and grafted under c1")
	}
	if len(sub.pending) != 0 {
		t.Errorf("no stubs should remain, got %+v", sub.pending)
	}
}

func TestReplaceMoreSyntheticTree(t *testing.T) {
	sub := testSubmission("p1")
	if err := sub.ReplaceMore(context.Background()); err != nil {
		t.Errorf("ReplaceMore() on a synthetic tree should be a no-op, got %v", err)
	}
}
