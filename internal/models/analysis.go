package models

import "database/sql"

// PostAnalysis represents an AI analysis row. Category and Reasoning stay
// null until the post has been successfully classified; a post counts as
// processed only once category is non-null.
type PostAnalysis struct {
	ID         string         `gorm:"primaryKey;type:varchar(16);column:id"`
	Title      string         `gorm:"type:text;not null;column:title"`
	Author     string         `gorm:"type:varchar(64);not null;column:author"`
	Flair      string         `gorm:"type:text;column:flair"`
	Selftext   string         `gorm:"type:text;column:selftext"`
	Category   sql.NullString `gorm:"type:varchar(64);column:category"`
	Reasoning  sql.NullString `gorm:"type:text;column:reasoning"`
	CreatedUTC string         `gorm:"type:varchar(19);column:created_utc"`
	Embedding  Vector         `gorm:"type:vector;column:embedding"`
}

// TableName specifies the table name for PostAnalysis
func (PostAnalysis) TableName() string {
	return "posts_ai_analysis"
}
