package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/tankwatch/tankwatch/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// OldestIDs returns up to limit post ids ordered by creation time ascending.
// This is the comment-extraction frontier.
func (r *PostRepository) OldestIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Order("created_utc ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AnalysisRepository provides AI analysis database operations
type AnalysisRepository struct {
	*Repository
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(repo *Repository) *AnalysisRepository {
	return &AnalysisRepository{Repository: repo}
}

// findUnanalyzedQuery is a bounded anti-join: among the limit most recent
// posts, those absent from the limit most recent categorized analysis rows.
// Posts older than the scan window are never revisited; the backlog is
// assumed to stay within the window.
const findUnanalyzedQuery = `
WITH recent_posts AS (
    SELECT
        id,
        title,
        author,
        flair,
        selftext,
        created_utc
    FROM posts
    ORDER BY created_utc DESC
    LIMIT ?
)
SELECT *
FROM recent_posts
WHERE id NOT IN (
    SELECT id
    FROM posts_ai_analysis
    WHERE category IS NOT NULL
    ORDER BY created_utc DESC
    LIMIT ?
)
`

// FindUnanalyzed returns recent posts that have no categorized analysis row
// within the scan window of the given size
func (r *AnalysisRepository) FindUnanalyzed(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	if err := r.db.WithContext(ctx).
		Raw(findUnanalyzedQuery, limit, limit).
		Scan(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}
