package models

// Comment represents a single comment row. ParentID is either another
// comment id or the owning post id for top-level comments, so every
// comment tree is a forest rooted at its post.
type Comment struct {
	ID         string `gorm:"primaryKey;type:varchar(16);column:id"`
	PostID     string `gorm:"type:varchar(16);not null;column:post_id"`
	ParentID   string `gorm:"type:varchar(16);not null;column:parent_id"`
	Body       string `gorm:"type:text;column:body"`
	Author     string `gorm:"type:varchar(64);not null;column:author"`
	Score      int    `gorm:"column:score"`
	CreatedUTC string `gorm:"type:varchar(19);column:created_utc"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}
