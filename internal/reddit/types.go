// Package reddit implements the forum capability over Reddit's OAuth JSON API:
// newest-submission listings, submission lookups with their comment trees, and
// exhaustive expansion of "load more comments" stubs.
package reddit

import "encoding/json"

// thing is Reddit's kind/data envelope
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listingData struct {
	Children []thing `json:"children"`
	After    string  `json:"after"`
}

type listingEnvelope struct {
	Data listingData `json:"data"`
}

type submissionData struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	LinkFlairText string  `json:"link_flair_text"`
	SelfText      string  `json:"selftext"`
	Subreddit     string  `json:"subreddit"`
	Score         int     `json:"score"`
	NumComments   int     `json:"num_comments"`
	CreatedUTC    float64 `json:"created_utc"`
}

type commentData struct {
	ID         string          `json:"id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	ParentID   string          `json:"parent_id"`
	Replies    json.RawMessage `json:"replies"`
}

type moreData struct {
	ParentID string   `json:"parent_id"`
	Children []string `json:"children"`
}

// morechildrenResponse is the /api/morechildren envelope
type morechildrenResponse struct {
	JSON struct {
		Data struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// Submission is a post together with its materialized comment tree
type Submission struct {
	ID          string
	Title       string
	Author      string
	Flair       string
	SelfText    string
	Subreddit   string
	Score       int
	NumComments int
	CreatedUTC  float64
	Comments    []*CommentNode

	client  *Client
	pending []*moreStub
	index   map[string]*CommentNode // fullname -> node, for grafting
}

// CommentNode is one node of a submission's reply tree
type CommentNode struct {
	ID         string
	Author     string
	Body       string
	Score      int
	CreatedUTC float64
	Replies    []*CommentNode
}

// moreStub is an unresolved "load more comments" pagination stub
type moreStub struct {
	parentFullname string
	children       []string
}

// Fullname returns the submission's t3-prefixed identifier
func (s *Submission) Fullname() string {
	return "t3_" + s.ID
}

func (c *CommentNode) fullname() string {
	return "t1_" + c.ID
}
