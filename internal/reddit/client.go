package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tankwatch/tankwatch/pkg/config"
	"github.com/tankwatch/tankwatch/pkg/logging"
	"github.com/tankwatch/tankwatch/pkg/telemetry"
)

const (
	oauthBaseURL = "https://oauth.reddit.com"
	tokenURL     = "https://www.reddit.com/api/v1/access_token"

	listingPageSize = 100
	moreBatchSize   = 100
)

// Client talks to Reddit's OAuth JSON API for one subreddit
type Client struct {
	cfg      config.RedditConfig
	http     *http.Client
	logger   *zap.Logger
	baseURL  string
	tokenURL string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a new Reddit client
func New(cfg *config.RedditConfig) (*Client, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("reddit credentials are required")
	}

	logger := logging.GetLogger().With(zap.String("component", "reddit-client"))

	client := &Client{
		cfg: *cfg,
		http: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		logger:   logger,
		baseURL:  oauthBaseURL,
		tokenURL: tokenURL,
	}

	logger.Info("Reddit client initialized", zap.String("subreddit", cfg.Subreddit))

	return client, nil
}

// authToken returns a valid application-only bearer token, refreshing it
// shortly before expiry
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	c.token = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	c.logger.Debug("Obtained Reddit access token",
		zap.Int("expires_in", token.ExpiresIn))

	return c.token, nil
}

// get performs an authenticated GET against the OAuth API and decodes the
// JSON response into out
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	token, err := c.authToken(ctx)
	if err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("raw_json", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// Newest fetches up to limit of the subreddit's newest submissions, newest
// first, without their comment trees
func (c *Client) Newest(ctx context.Context, limit int) ([]*Submission, error) {
	ctx, span := telemetry.StartSpan(ctx, "reddit.newest")
	defer span.End()

	var submissions []*Submission
	after := ""

	for len(submissions) < limit {
		pageSize := limit - len(submissions)
		if pageSize > listingPageSize {
			pageSize = listingPageSize
		}

		query := url.Values{}
		query.Set("limit", fmt.Sprintf("%d", pageSize))
		if after != "" {
			query.Set("after", after)
		}

		var listing listingEnvelope
		if err := c.get(ctx, fmt.Sprintf("/r/%s/new", c.cfg.Subreddit), query, &listing); err != nil {
			return nil, fmt.Errorf("failed to fetch newest submissions: %w", err)
		}

		for _, child := range listing.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			var data submissionData
			if err := json.Unmarshal(child.Data, &data); err != nil {
				return nil, fmt.Errorf("failed to decode submission: %w", err)
			}
			submissions = append(submissions, newSubmission(c, data))
			if len(submissions) == limit {
				break
			}
		}

		after = listing.Data.After
		if after == "" || len(listing.Data.Children) == 0 {
			break
		}
	}

	c.logger.Debug("Fetched newest submissions", zap.Int("count", len(submissions)))

	return submissions, nil
}

// Submission fetches a single submission by id together with its comment tree
func (c *Client) Submission(ctx context.Context, id string) (*Submission, error) {
	ctx, span := telemetry.StartSpan(ctx, "reddit.submission")
	defer span.End()

	query := url.Values{}
	query.Set("limit", "500")

	// Reddit returns [postListing, commentListing]
	var listings []listingEnvelope
	if err := c.get(ctx, "/comments/"+id, query, &listings); err != nil {
		return nil, fmt.Errorf("failed to fetch submission %s: %w", id, err)
	}
	if len(listings) != 2 || len(listings[0].Data.Children) == 0 {
		return nil, fmt.Errorf("unexpected response shape for submission %s", id)
	}

	var data submissionData
	if err := json.Unmarshal(listings[0].Data.Children[0].Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}

	sub := newSubmission(c, data)

	comments, err := sub.parseChildren(listings[1].Data.Children)
	if err != nil {
		return nil, fmt.Errorf("failed to parse comments of %s: %w", id, err)
	}
	sub.Comments = comments

	return sub, nil
}

func newSubmission(c *Client, data submissionData) *Submission {
	return &Submission{
		ID:          data.ID,
		Title:       data.Title,
		Author:      data.Author,
		Flair:       data.LinkFlairText,
		SelfText:    data.SelfText,
		Subreddit:   data.Subreddit,
		Score:       data.Score,
		NumComments: data.NumComments,
		CreatedUTC:  data.CreatedUTC,
		client:      c,
		index:       make(map[string]*CommentNode),
	}
}

// ReplaceMore exhaustively resolves every "load more comments" stub in the
// submission's tree. There is no page cap: expansion repeats until no stubs
// remain, including stubs returned by the expansion itself.
func (s *Submission) ReplaceMore(ctx context.Context) error {
	if s.client == nil {
		return nil // synthetic tree, nothing to expand
	}

	ctx, span := telemetry.StartSpan(ctx, "reddit.replace_more")
	defer span.End()

	for len(s.pending) > 0 {
		stub := s.pending[0]
		s.pending = s.pending[1:]

		// A stub without child ids is a "continue this thread" marker
		if len(stub.children) == 0 {
			if err := s.continueThread(ctx, stub.parentFullname); err != nil {
				return err
			}
			continue
		}

		for start := 0; start < len(stub.children); start += moreBatchSize {
			end := start + moreBatchSize
			if end > len(stub.children) {
				end = len(stub.children)
			}

			things, err := s.client.morechildren(ctx, s.Fullname(), stub.children[start:end])
			if err != nil {
				return fmt.Errorf("failed to expand comments under %s: %w", stub.parentFullname, err)
			}
			if err := s.graft(things); err != nil {
				return err
			}
		}
	}
	return nil
}

// continueThread resolves a "continue this thread" stub by re-fetching the
// comment tree rooted at the parent comment. The parent sits at the depth
// cutoff with no materialized replies, so the refetched subtree attaches
// under it; nested stubs in the subtree are queued for later rounds.
func (s *Submission) continueThread(ctx context.Context, parentFullname string) error {
	query := url.Values{}
	query.Set("comment", strings.TrimPrefix(parentFullname, "t1_"))
	query.Set("limit", "500")

	var listings []listingEnvelope
	if err := s.client.get(ctx, "/comments/"+s.ID, query, &listings); err != nil {
		return fmt.Errorf("failed to fetch thread continuation under %s: %w", parentFullname, err)
	}
	if len(listings) != 2 {
		return fmt.Errorf("unexpected response shape for thread continuation under %s", parentFullname)
	}

	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var data commentData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			return fmt.Errorf("failed to decode thread continuation under %s: %w", parentFullname, err)
		}
		if "t1_"+data.ID != parentFullname {
			continue
		}

		replies, err := s.parseCommentListing(data.Replies)
		if err != nil {
			return err
		}
		if parent, ok := s.index[parentFullname]; ok {
			parent.Replies = append(parent.Replies, replies...)
		} else {
			s.Comments = append(s.Comments, replies...)
		}
		return nil
	}

	return fmt.Errorf("thread continuation response did not contain %s", parentFullname)
}

func (c *Client) morechildren(ctx context.Context, linkFullname string, children []string) ([]thing, error) {
	query := url.Values{}
	query.Set("api_type", "json")
	query.Set("link_id", linkFullname)
	query.Set("children", strings.Join(children, ","))

	var resp morechildrenResponse
	if err := c.get(ctx, "/api/morechildren", query, &resp); err != nil {
		return nil, err
	}
	return resp.JSON.Data.Things, nil
}
