package models

import "time"

// PostCategory classifies a civic issue report.
type PostCategory string

const (
	CategoryTraffic      PostCategory = "Traffic"
	CategoryEnvironment  PostCategory = "Environment"
	CategoryPublicSafety PostCategory = "Public Safety"
	CategorySanitation   PostCategory = "Sanitation"
)

// PostCategories lists every accepted category.
var PostCategories = []PostCategory{CategoryTraffic, CategoryEnvironment, CategoryPublicSafety, CategorySanitation}

// Valid reports whether c is a known category.
func (c PostCategory) Valid() bool {
	for _, known := range PostCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Post is a civic issue report. Votes, likes and comment counts are derived at
// read time from their child tables and never stored on the row.
type Post struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	Title           string       `gorm:"size:200;not null" json:"title"`
	Description     string       `gorm:"type:text;not null" json:"description"`
	Category        PostCategory `gorm:"size:32;not null;index" json:"category"`
	ImageURL        string       `json:"image_url"`
	ImagePreviewURL string       `json:"image_preview_url,omitempty"`
	UserID          uint         `gorm:"not null;index" json:"author_id"`
	User            *User        `gorm:"foreignKey:UserID" json:"-"`
	Shares          int          `gorm:"not null;default:0" json:"shares"`
	Comments        []Comment    `gorm:"foreignKey:PostID" json:"comments"`
	CreatedAt       time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	AuthorName     string `gorm:"->;-:migration" json:"author"`
	AuthorUsername string `gorm:"->;-:migration" json:"author_username"`
	AuthorAvatar   string `gorm:"->;-:migration" json:"author_avatar"`
	VotesCount     int    `gorm:"->;-:migration" json:"votes"`
	LikesCount     int    `gorm:"->;-:migration" json:"likes"`
	CommentsCount  int    `gorm:"->;-:migration" json:"comments_count"`
	// UserVote and UserLiked describe the requesting user's state.
	UserVote  int    `gorm:"->;-:migration" json:"user_vote"`
	UserLiked bool   `gorm:"->;-:migration" json:"user_liked"`
	TimeAgo   string `gorm:"-" json:"time_ago"`
}

// PostVote is a user's latest vote on a post.
type PostVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_vote_pair" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_vote_pair;index" json:"user_id"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostLike records one user's like on a post.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_like_pair" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_like_pair;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteResult is the outcome of recording a vote.
type VoteResult struct {
	Previous int
	Votes    int
}

// LikeResult is the outcome of a like or unlike.
type LikeResult struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}
