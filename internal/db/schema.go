package db

import (
	"context"
	"fmt"
)

// Bootstrap DDL for the persisted tables. Idempotent; run before the first
// write of each pipeline run. The embedding column uses pgvector's vector
// type sized for text-embedding-3-small.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id VARCHAR(16) PRIMARY KEY,
		title TEXT NOT NULL,
		author VARCHAR(64) NOT NULL,
		flair TEXT,
		selftext TEXT,
		subreddit VARCHAR(64),
		score INTEGER DEFAULT 0,
		num_comments INTEGER DEFAULT 0,
		created_utc VARCHAR(19),
		processing_timestamp TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id VARCHAR(16) PRIMARY KEY,
		post_id VARCHAR(16) NOT NULL,
		parent_id VARCHAR(16) NOT NULL,
		body TEXT,
		author VARCHAR(64) NOT NULL,
		score INTEGER DEFAULT 0,
		created_utc VARCHAR(19),
		processing_timestamp TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS posts_ai_analysis (
		id VARCHAR(16) PRIMARY KEY,
		title TEXT NOT NULL,
		author VARCHAR(64) NOT NULL,
		flair TEXT,
		selftext TEXT,
		category VARCHAR(64),
		reasoning TEXT,
		created_utc VARCHAR(19),
		embedding VECTOR(1536),
		processing_timestamp TIMESTAMPTZ DEFAULT NOW()
	)`,
}

// EnsureSchema creates the persisted tables if they do not exist
func (w *Writer) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if err := w.db.DB.WithContext(ctx).Exec(ddl).Error; err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	w.logger.Info("Schema ensured")
	return nil
}
