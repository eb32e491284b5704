// Package models contains the GORM entities and response shapes of the civic
// reporting domain.
package models

import "time"

// User represents a registered citizen or administrator.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:50;not null" json:"name"`
	Username   string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email      string    `gorm:"size:255;uniqueIndex;not null" json:"email,omitempty"`
	Password   string    `gorm:"not null" json:"-"`
	Bio        string    `gorm:"size:500" json:"bio"`
	Avatar     string    `json:"avatar"`
	IsAdmin    bool      `gorm:"not null;default:false" json:"is_admin"`
	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Public returns a copy safe to show to other users.
func (u User) Public() User {
	u.Email = ""
	u.Password = ""
	return u
}

// UserStats summarizes a user's activity.
type UserStats struct {
	TotalPosts    int64 `json:"total_posts"`
	TotalComments int64 `json:"total_comments"`
	TotalVotes    int64 `json:"total_votes"`
}

// UserProfile is a user plus activity stats.
type UserProfile struct {
	User
	Stats UserStats `json:"stats"`
}

// ContributorStats breaks down the points of a top contributor.
type ContributorStats struct {
	Posts         int64 `json:"posts"`
	Comments      int64 `json:"comments"`
	VotesReceived int64 `json:"votes_received"`
}

// Contributor is one ranked entry of the top contributors board.
type Contributor struct {
	ID       uint             `json:"id"`
	Name     string           `json:"name"`
	Username string           `json:"username"`
	Avatar   string           `json:"avatar"`
	Points   int64            `json:"points"`
	Stats    ContributorStats `json:"stats"`
}

// UserFollow records that FollowerID follows FollowedID.
type UserFollow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_user_follow_pair" json:"follower_id"`
	FollowedID uint      `gorm:"not null;uniqueIndex:idx_user_follow_pair;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}
