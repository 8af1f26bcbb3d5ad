package etl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tankwatch/tankwatch/internal/models"
	"github.com/tankwatch/tankwatch/internal/reddit"
	"github.com/tankwatch/tankwatch/pkg/logging"
)

// submissionFetcher looks up a single submission with its comment tree
type submissionFetcher interface {
	Submission(ctx context.Context, id string) (*reddit.Submission, error)
}

// frontierSource yields the post ids whose comment trees should be extracted
type frontierSource interface {
	OldestIDs(ctx context.Context, limit int) ([]string, error)
}

// CommentExtractor flattens the comment trees of already-persisted posts into
// parent-linked comment rows
type CommentExtractor struct {
	forum  submissionFetcher
	posts  frontierSource
	limit  int
	logger *zap.Logger
}

// NewCommentExtractor creates a new comment extractor
func NewCommentExtractor(forum submissionFetcher, posts frontierSource, limit int) *CommentExtractor {
	return &CommentExtractor{
		forum:  forum,
		posts:  posts,
		limit:  limit,
		logger: logging.GetLogger().With(zap.String("component", "comment-extractor")),
	}
}

// FetchComments selects the oldest stored posts as the extraction frontier,
// fetches each submission, exhaustively expands its pagination stubs, and
// flattens every reply tree into comment rows. A submission fetch or
// expansion failure skips that post; a node whose payload is unreadable is
// recorded in the failed list while its children are still visited. Only the
// frontier query itself can abort the call.
func (e *CommentExtractor) FetchComments(ctx context.Context) ([]models.Comment, []string, error) {
	postIDs, err := e.posts.OldestIDs(ctx, e.limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query extraction frontier: %w", err)
	}

	var comments []models.Comment
	var failed []string

	for _, postID := range postIDs {
		sub, err := e.forum.Submission(ctx, postID)
		if err != nil {
			e.logger.Error("Failed to fetch submission",
				zap.String("post_id", postID),
				zap.Error(err))
			continue
		}

		if err := sub.ReplaceMore(ctx); err != nil {
			e.logger.Error("Failed to expand comment tree",
				zap.String("post_id", postID),
				zap.Error(err))
			continue
		}

		rows, failedNodes := e.flattenTree(postID, sub)
		comments = append(comments, rows...)
		failed = append(failed, failedNodes...)

		if len(failedNodes) > 0 {
			e.logger.Warn("Skipped unreadable comments",
				zap.String("post_id", postID),
				zap.Int("count", len(failedNodes)),
				zap.Strings("comment_ids", failedNodes))
		}
	}

	e.logger.Info("Fetched comments",
		zap.Int("count", len(comments)),
		zap.Int("posts", len(postIDs)),
		zap.Int("failed", len(failed)))

	return comments, failed, nil
}

// flattenTree walks the materialized reply tree with an explicit stack,
// visiting every node exactly once. Parent linkage is the immediate parent
// comment id, or the post id for top-level comments, so the forest stays
// rooted at the post. An unreadable node contributes no row but its children
// are still linked to its id, preserving the tree shape.
func (e *CommentExtractor) flattenTree(postID string, sub *reddit.Submission) ([]models.Comment, []string) {
	type frame struct {
		node     *reddit.CommentNode
		parentID string
	}

	var out []models.Comment
	var failed []string

	stack := make([]frame, 0, len(sub.Comments))
	// push in reverse so rows come out in listing order
	for i := len(sub.Comments) - 1; i >= 0; i-- {
		stack = append(stack, frame{sub.Comments[i], postID})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		row, err := mapComment(postID, f.parentID, f.node)
		if err != nil {
			// A node without an id cannot be recorded as failed either;
			// its children reattach to the nearest identifiable ancestor
			if f.node.ID != "" {
				failed = append(failed, f.node.ID)
			}
		} else {
			out = append(out, row)
		}

		childParent := f.node.ID
		if childParent == "" {
			childParent = f.parentID
		}
		for i := len(f.node.Replies) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Replies[i], childParent})
		}
	}

	return out, failed
}

func mapComment(postID, parentID string, node *reddit.CommentNode) (models.Comment, error) {
	if node.ID == "" {
		return models.Comment{}, fmt.Errorf("comment has no id")
	}
	if node.Body == "" && node.Author == "" {
		return models.Comment{}, fmt.Errorf("comment %s payload is unreadable", node.ID)
	}

	author := node.Author
	if author == "" || author == "[deleted]" {
		author = "deleted"
	}

	return models.Comment{
		ID:         node.ID,
		PostID:     postID,
		ParentID:   parentID,
		Body:       node.Body,
		Author:     author,
		Score:      node.Score,
		CreatedUTC: models.FormatCreatedUTC(node.CreatedUTC),
	}, nil
}
