package service

import (
	"fmt"
	"time"

	"civicpulse/internal/models"
)

var clock = time.Now

type agoUnit struct {
	seconds int64
	name    string
}

var agoUnits = []agoUnit{
	{31536000, "year"},
	{2592000, "month"},
	{86400, "day"},
	{3600, "hour"},
	{60, "minute"},
}

// TimeAgo renders t relative to now, e.g. "3 days ago" or "just now".
func TimeAgo(t time.Time) string {
	return timeAgoAt(t, clock())
}

func timeAgoAt(t, now time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)
	for _, u := range agoUnits {
		n := seconds / u.seconds
		switch {
		case n > 1:
			return fmt.Sprintf("%d %ss ago", n, u.name)
		case n == 1:
			return fmt.Sprintf("1 %s ago", u.name)
		}
	}
	return "just now"
}

// IssueStatus labels an issue by its vote total.
func IssueStatus(votes int) string {
	switch {
	case votes >= 50:
		return "In Progress"
	case votes >= 10:
		return "Under Review"
	default:
		return "Open"
	}
}

func shapePost(p *models.Post) {
	p.TimeAgo = TimeAgo(p.CreatedAt)
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}
	for i := range p.Comments {
		p.Comments[i].TimeAgo = TimeAgo(p.Comments[i].CreatedAt)
	}
}
