package models

import "time"

// TimeLayout is the canonical UTC timestamp format for created_utc columns.
// Lexicographic order of this layout matches chronological order, which the
// frontier and diff queries rely on.
const TimeLayout = "2006-01-02_15:04:05"

// FormatCreatedUTC converts a Unix epoch (Reddit's created_utc) to the
// canonical UTC string. A zero epoch yields the empty string.
func FormatCreatedUTC(epoch float64) string {
	if epoch == 0 {
		return ""
	}
	return time.Unix(int64(epoch), 0).UTC().Format(TimeLayout)
}

// Post represents a subreddit submission row
type Post struct {
	ID          string `gorm:"primaryKey;type:varchar(16);column:id"`
	Title       string `gorm:"type:text;not null;column:title"`
	Author      string `gorm:"type:varchar(64);not null;column:author"`
	Flair       string `gorm:"type:text;column:flair"`
	Selftext    string `gorm:"type:text;column:selftext"`
	Subreddit   string `gorm:"type:varchar(64);column:subreddit"`
	Score       int    `gorm:"column:score"`
	NumComments int    `gorm:"column:num_comments"`
	CreatedUTC  string `gorm:"type:varchar(19);column:created_utc"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}
