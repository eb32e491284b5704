package cache

import (
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "user:%d"
	PostKeyPrefix       = "post:%d"
	PostListVersionKey  = "posts:list:version"
	TopContributorsKey  = "users:top-contributors"
	RevokedTokenPrefix  = "blacklist:%s"
	postListKeyTemplate = "posts:list:v%d:%s:%s:%d:%d"
)

const (
	UserTTL            = 5 * time.Minute
	PostTTL            = 2 * time.Minute
	PostListTTL        = 1 * time.Minute
	TopContributorsTTL = 5 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// PostListKey identifies one anonymous page of the feed under a list version.
func PostListKey(version int64, sort, category string, limit, offset int) string {
	return fmt.Sprintf(postListKeyTemplate, version, sort, category, limit, offset)
}

func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(RevokedTokenPrefix, jti)
}
