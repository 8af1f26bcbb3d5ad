package etl

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tankwatch/tankwatch/internal/db"
	"github.com/tankwatch/tankwatch/internal/models"
	"github.com/tankwatch/tankwatch/pkg/logging"
	"github.com/tankwatch/tankwatch/pkg/telemetry"
)

// storeWriter is the batch write path of the relational store
type storeWriter interface {
	EnsureSchema(ctx context.Context) error
	Write(ctx context.Context, table string, rows interface{}, mode db.WriteMode, conflictKeys []string) error
}

// postSource produces post rows ready to persist
type postSource interface {
	FetchPosts(ctx context.Context) ([]models.Post, []string, error)
}

// commentSource produces comment rows ready to persist
type commentSource interface {
	FetchComments(ctx context.Context) ([]models.Comment, []string, error)
}

// analysisEngine diffs and enriches stored posts
type analysisEngine interface {
	FindNewPosts(ctx context.Context) []models.Post
	Enrich(ctx context.Context, posts []models.Post) ([]models.PostAnalysis, []string)
}

// Runner sequences one batch run: post extraction, AI enrichment, comment
// extraction, each followed by its upsert. Stages run strictly in that order
// because enrichment diffs against persisted posts and comment extraction
// reads its frontier from them.
type Runner struct {
	posts    postSource
	comments commentSource
	analyzer analysisEngine
	writer   storeWriter
	logger   *zap.Logger
}

// NewRunner creates a new pipeline runner
func NewRunner(posts postSource, comments commentSource, analyzer analysisEngine, writer storeWriter) *Runner {
	return &Runner{
		posts:    posts,
		comments: comments,
		analyzer: analyzer,
		writer:   writer,
		logger:   logging.GetLogger().With(zap.String("component", "etl-runner")),
	}
}

// Run executes all stages best-effort: a failing stage is logged and the run
// moves on to the next one. The returned error is non-nil when any stage
// failed, so the process can exit nonzero while still having done all the
// work it could.
func (r *Runner) Run(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "etl.run")
	defer span.End()

	if err := r.writer.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema bootstrap failed: %w", err)
	}

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"posts", r.runPosts},
		{"analysis", r.runAnalysis},
		{"comments", r.runComments},
	}

	var failedStages []string
	for _, stage := range stages {
		r.logger.Info("Running stage", zap.String("stage", stage.name))
		if err := stage.run(ctx); err != nil {
			r.logger.Error("Stage failed",
				zap.String("stage", stage.name),
				zap.Error(err))
			failedStages = append(failedStages, stage.name)
		}
	}

	if len(failedStages) > 0 {
		return fmt.Errorf("run completed with failed stages: %s", strings.Join(failedStages, ", "))
	}

	r.logger.Info("Run complete")
	return nil
}

func (r *Runner) runPosts(ctx context.Context) error {
	posts, failed, err := r.posts.FetchPosts(ctx)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		r.logger.Warn("Some submissions failed to map", zap.Strings("post_ids", failed))
	}
	if len(posts) == 0 {
		r.logger.Info("No posts to write")
		return nil
	}
	return r.writer.Write(ctx, "posts", posts, db.ModeUpsert, []string{"id"})
}

func (r *Runner) runAnalysis(ctx context.Context) error {
	newPosts := r.analyzer.FindNewPosts(ctx)
	r.logger.Info("Found posts to analyze", zap.Int("count", len(newPosts)))
	if len(newPosts) == 0 {
		return nil
	}

	rows, failed := r.analyzer.Enrich(ctx, newPosts)
	if len(failed) > 0 {
		r.logger.Warn("Some posts failed enrichment", zap.Strings("post_ids", failed))
	}
	if len(rows) == 0 {
		r.logger.Info("No analysis results to write")
		return nil
	}
	return r.writer.Write(ctx, "posts_ai_analysis", rows, db.ModeUpsert, []string{"id"})
}

func (r *Runner) runComments(ctx context.Context) error {
	comments, failed, err := r.comments.FetchComments(ctx)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		r.logger.Warn("Some comments failed extraction", zap.Strings("comment_ids", failed))
	}
	if len(comments) == 0 {
		r.logger.Info("No comments to write")
		return nil
	}
	return r.writer.Write(ctx, "comments", comments, db.ModeUpsert, []string{"id"})
}
