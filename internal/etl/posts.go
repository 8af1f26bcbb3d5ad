// Package etl implements the incremental content pipeline: post extraction,
// comment tree flattening, the new-content diff, AI enrichment, and the
// orchestration of one batch run.
package etl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tankwatch/tankwatch/internal/models"
	"github.com/tankwatch/tankwatch/internal/reddit"
	"github.com/tankwatch/tankwatch/pkg/logging"
)

// submissionLister yields the subreddit's newest submissions
type submissionLister interface {
	Newest(ctx context.Context, limit int) ([]*reddit.Submission, error)
}

// PostExtractor pulls the newest submissions and maps them to post rows
type PostExtractor struct {
	forum  submissionLister
	limit  int
	logger *zap.Logger
}

// NewPostExtractor creates a new post extractor
func NewPostExtractor(forum submissionLister, limit int) *PostExtractor {
	return &PostExtractor{
		forum:  forum,
		limit:  limit,
		logger: logging.GetLogger().With(zap.String("component", "post-extractor")),
	}
}

// FetchPosts fetches up to the configured limit of newest submissions and
// maps each to a post row. A submission that fails to map is logged with its
// id and skipped; the failed ids are returned alongside the successes. Only a
// listing-level failure aborts the call.
func (e *PostExtractor) FetchPosts(ctx context.Context) ([]models.Post, []string, error) {
	submissions, err := e.forum.Newest(ctx, e.limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	posts := make([]models.Post, 0, len(submissions))
	var failed []string

	for _, sub := range submissions {
		post, err := mapSubmission(sub)
		if err != nil {
			e.logger.Error("Failed to map submission",
				zap.String("post_id", sub.ID),
				zap.Error(err))
			failed = append(failed, sub.ID)
			continue
		}
		posts = append(posts, post)
	}

	e.logger.Info("Fetched posts",
		zap.Int("count", len(posts)),
		zap.Int("failed", len(failed)))

	return posts, failed, nil
}

func mapSubmission(sub *reddit.Submission) (models.Post, error) {
	if sub.ID == "" {
		return models.Post{}, fmt.Errorf("submission has no id")
	}

	author := sub.Author
	if author == "" || author == "[deleted]" {
		author = "unknown"
	}

	return models.Post{
		ID:          sub.ID,
		Title:       sub.Title,
		Author:      author,
		Flair:       sub.Flair,
		Selftext:    sub.SelfText,
		Subreddit:   sub.Subreddit,
		Score:       sub.Score,
		NumComments: sub.NumComments,
		CreatedUTC:  models.FormatCreatedUTC(sub.CreatedUTC),
	}, nil
}
