package etl

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tankwatch/tankwatch/internal/cache"
	"github.com/tankwatch/tankwatch/internal/models"
	"github.com/tankwatch/tankwatch/pkg/logging"
)

// aiClient is the AI capability: single-shot classification and embeddings
type aiClient interface {
	Classify(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// analysisSource yields stored posts that lack a categorized analysis row
type analysisSource interface {
	FindUnanalyzed(ctx context.Context, limit int) ([]models.Post, error)
}

// cacheTTL bounds how long a cached classification is trusted before the
// post is classified again
const cacheTTL = 7 * 24 * time.Hour

// Analyzer computes the set of unprocessed posts and enriches each with a
// category, a justification, and optionally an embedding
type Analyzer struct {
	repo       analysisSource
	ai         aiClient
	cache      *cache.Cache
	subreddit  string
	embeddings bool
	limit      int
	logger     *zap.Logger
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(repo analysisSource, ai aiClient, c *cache.Cache, subreddit string, embeddings bool, limit int) *Analyzer {
	return &Analyzer{
		repo:       repo,
		ai:         ai,
		cache:      c,
		subreddit:  subreddit,
		embeddings: embeddings,
		limit:      limit,
		logger:     logging.GetLogger().With(zap.String("component", "analyzer")),
	}
}

// classification is the strict two-field response expected from the AI
type classification struct {
	Category  string `json:"category"`
	Reasoning string `json:"reasoning"`
}

// FindNewPosts returns the stored posts that are not yet categorized, bounded
// by the scan window. A query failure is logged and yields an empty result:
// an empty slice means "nothing to do", not a guaranteed absence of backlog.
func (a *Analyzer) FindNewPosts(ctx context.Context) []models.Post {
	posts, err := a.repo.FindUnanalyzed(ctx, a.limit)
	if err != nil {
		a.logger.Error("Failed to query unanalyzed posts", zap.Error(err))
		return nil
	}
	return posts
}

// Enrich classifies each post and, when enabled, embeds its text. Posts with
// neither flair nor body carry too little signal and are skipped without a
// row. Each post is isolated: a classification or embedding failure drops
// only that post and is reported in the failed-id list.
func (a *Analyzer) Enrich(ctx context.Context, posts []models.Post) ([]models.PostAnalysis, []string) {
	rows := make([]models.PostAnalysis, 0, len(posts))
	var failed []string

	for _, post := range posts {
		if post.Flair == "" && post.Selftext == "" {
			a.logger.Debug("Skipping post with insufficient signal",
				zap.String("post_id", post.ID))
			continue
		}

		result, err := a.classify(ctx, post)
		if err != nil {
			a.logger.Error("Failed to classify post",
				zap.String("post_id", post.ID),
				zap.Error(err))
			failed = append(failed, post.ID)
			continue
		}

		row := models.PostAnalysis{
			ID:         post.ID,
			Title:      post.Title,
			Author:     post.Author,
			Flair:      post.Flair,
			Selftext:   post.Selftext,
			Category:   sql.NullString{String: result.Category, Valid: true},
			Reasoning:  sql.NullString{String: result.Reasoning, Valid: true},
			CreatedUTC: post.CreatedUTC,
		}

		if a.embeddings {
			text := post.Selftext
			if text == "" {
				text = post.Flair + post.Title
			}
			vec, err := a.ai.Embed(ctx, SanitizeText(text))
			if err != nil {
				a.logger.Error("Failed to embed post",
					zap.String("post_id", post.ID),
					zap.Error(err))
				failed = append(failed, post.ID)
				continue
			}
			row.Embedding = models.Vector(vec)
		}

		rows = append(rows, row)
	}

	a.logger.Info("Enriched posts",
		zap.Int("count", len(rows)),
		zap.Int("failed", len(failed)))

	return rows, failed
}

// classify resolves a post's classification, consulting the cache before
// spending an LLM call
func (a *Analyzer) classify(ctx context.Context, post models.Post) (classification, error) {
	key := cache.AnalysisKey(post.ID)

	if cached, err := a.cache.Get(key); err == nil {
		var result classification
		if err := json.Unmarshal([]byte(cached), &result); err == nil && result.Category != "" {
			a.logger.Debug("Classification cache hit", zap.String("post_id", post.ID))
			return result, nil
		}
	}

	content, err := a.ai.Classify(ctx, buildPrompt(a.subreddit, post.Flair, post.Title, post.Selftext))
	if err != nil {
		return classification{}, err
	}

	result, err := parseClassification(content)
	if err != nil {
		return classification{}, err
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := a.cache.Set(key, encoded, cacheTTL); err != nil && err != cache.ErrCacheDisabled {
			a.logger.Debug("Failed to cache classification",
				zap.String("post_id", post.ID),
				zap.Error(err))
		}
	}

	return result, nil
}

// buildPrompt renders the fixed classification prompt for one post
func buildPrompt(subreddit, flair, title, body string) string {
	return fmt.Sprintf(
		"You are an AI moderator assistant for the subreddit r/%s.\n"+
			"Use all of your knowledge about the game and its fanbase, and given "+
			"a Reddit post, categorize it into one of the following classes:\n\n"+
			"1. Positive Experience\n"+
			"2. Negative Experience\n"+
			"3. Constructive Feedback\n"+
			"4. Bug/Issue Report\n"+
			"5. Community/Discussion\n"+
			"6. Sarcasm/Humor\n"+
			"7. News/Update Sharing\n"+
			"8. Question/Help Request\n"+
			"9. Off-topic/Other\n\n"+
			"Here is the post:\n"+
			"Flair: %s\n"+
			"Title: %s\n"+
			"Body: %s\n\n"+
			"Respond with the best matching category and a short one-sentence justification. "+
			"Respond in a JSON (OMIT MARKDOWN) in dictionary format with keys 'category' and 'reasoning'.",
		subreddit, flair, title, body)
}

// parseClassification parses the strict two-field JSON response. Surrounding
// formatting such as markdown fences is rejected rather than stripped.
func parseClassification(content string) (classification, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		return classification{}, fmt.Errorf("response wrapped in markdown fences")
	}

	var result classification
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return classification{}, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if result.Category == "" {
		return classification{}, fmt.Errorf("response missing category")
	}
	return result, nil
}
