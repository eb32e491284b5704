package models

import "time"

// Comment belongs to exactly one post and is returned embedded in it.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AuthorName     string `gorm:"->;-:migration" json:"author"`
	AuthorUsername string `gorm:"->;-:migration" json:"author_username"`
	AuthorAvatar   string `gorm:"->;-:migration" json:"author_avatar"`
	LikesCount     int    `gorm:"->;-:migration" json:"likes"`
	UserLiked      bool   `gorm:"->;-:migration" json:"user_liked"`
	TimeAgo        string `gorm:"-" json:"time_ago"`
}

// CommentLike records one user's like on a comment.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_like_pair" json:"comment_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_like_pair;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
