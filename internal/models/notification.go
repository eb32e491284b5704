package models

import (
	"encoding/json"
	"time"
)

// NotificationType names the event a notification reports.
type NotificationType string

const (
	NotificationNewComment   NotificationType = "new_comment"
	NotificationMention      NotificationType = "mention"
	NotificationReply        NotificationType = "reply"
	NotificationIssueUpdate  NotificationType = "issue_update"
	NotificationNewFollower  NotificationType = "new_follower"
	NotificationVote         NotificationType = "vote"
	NotificationPostApproval NotificationType = "post_approval"
	NotificationAdminMessage NotificationType = "admin_message"
	NotificationTopicUpdate  NotificationType = "topic_update"
	NotificationSystem       NotificationType = "system"
)

var notificationTypes = map[NotificationType]struct{}{
	NotificationNewComment: {}, NotificationMention: {}, NotificationReply: {},
	NotificationIssueUpdate: {}, NotificationNewFollower: {}, NotificationVote: {},
	NotificationPostApproval: {}, NotificationAdminMessage: {}, NotificationTopicUpdate: {},
	NotificationSystem: {},
}

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	_, ok := notificationTypes[t]
	return ok
}

// RelatedKind is the entity family a notification points at.
type RelatedKind string

const (
	RelatedPost    RelatedKind = "post"
	RelatedComment RelatedKind = "comment"
	RelatedUser    RelatedKind = "user"
	RelatedTopic   RelatedKind = "topic"
)

// Reference is a typed pointer to the entity a notification is about. The
// zero value means "no related entity".
type Reference struct {
	Kind RelatedKind `gorm:"size:16" json:"kind"`
	ID   uint        `json:"id"`
}

func PostRef(id uint) Reference    { return Reference{Kind: RelatedPost, ID: id} }
func CommentRef(id uint) Reference { return Reference{Kind: RelatedComment, ID: id} }
func UserRef(id uint) Reference    { return Reference{Kind: RelatedUser, ID: id} }
func TopicRef(id uint) Reference   { return Reference{Kind: RelatedTopic, ID: id} }

// IsZero reports whether the reference points nowhere.
func (r Reference) IsZero() bool {
	return r.Kind == "" || r.ID == 0
}

// MarshalJSON renders an empty reference as null.
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	type plain Reference
	return json.Marshal(plain(r))
}

// Notification is a per-recipient event record.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notification_recipient_read" json:"recipient_id"`
	SenderID    *uint            `gorm:"index" json:"sender_id,omitempty"`
	Sender      *User            `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Type        NotificationType `gorm:"size:32;not null" json:"type"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Message     string           `gorm:"size:1000;not null" json:"message"`
	Read        bool             `gorm:"not null;default:false;index:idx_notification_recipient_read" json:"read"`
	Related     Reference        `gorm:"embedded;embeddedPrefix:related_" json:"related"`
	URL         string           `json:"url"`
	Image       string           `json:"image"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NotificationFilter selects and pages a recipient's notifications.
type NotificationFilter struct {
	Read        *bool
	Limit       int
	Skip        int
	OldestFirst bool
}
