package models

import "time"

// IssueResult is a post as shown in search results.
type IssueResult struct {
	ID             uint         `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Category       PostCategory `json:"category"`
	Status         string       `json:"status"`
	Author         string       `json:"author"`
	AuthorUsername string       `json:"author_username"`
	PostedAt       string       `json:"posted_at"`
	Votes          int          `json:"votes"`
	Comments       int          `json:"comments"`
}

// PersonResult is a user as shown in search results.
type PersonResult struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	Bio       string `json:"bio"`
	Followers int64  `json:"followers"`
}

// TopicResult is a topic or a synthesized topic placeholder.
type TopicResult struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug,omitempty"`
	Description     string `json:"description"`
	Count           int    `json:"count"`
	IsNewSuggestion bool   `json:"is_new_suggestion,omitempty"`
	IsFallback      bool   `json:"is_fallback,omitempty"`
}

// LocationResult is a location or a synthesized location placeholder.
type LocationResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Type       string `json:"type"`
	IsFallback bool   `json:"is_fallback,omitempty"`
}

// SearchResults always carries all four categories as arrays.
type SearchResults struct {
	Issues    []IssueResult    `json:"issues"`
	People    []PersonResult   `json:"people"`
	Topics    []TopicResult    `json:"topics"`
	Locations []LocationResult `json:"locations"`
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// IssueRow is the raw projection used by issue search.
type IssueRow struct {
	ID             uint
	Title          string
	Description    string
	Category       PostCategory
	AuthorName     string
	AuthorUsername string
	Votes          int
	Comments       int
	CreatedAt      time.Time
}

// PersonRow is the raw projection used by people search.
type PersonRow struct {
	ID        uint
	Name      string
	Username  string
	Avatar    string
	Bio       string
	Followers int64
}
