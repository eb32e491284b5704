package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/observability"
	"civicpulse/internal/repository"

	"golang.org/x/sync/errgroup"
)

// Search scopes accepted by the type parameter.
const (
	SearchAll       = "all"
	SearchIssues    = "issues"
	SearchPeople    = "people"
	SearchTopics    = "topics"
	SearchLocations = "locations"
)

const (
	searchLimitSingle  = 20
	searchLimitMixed   = 5
	suggestionLimit    = 2
	minSuggestQueryLen = 3
)

var topicKeywords = []string{
	"Maintenance", "Safety", "Development", "Construction",
	"Community", "Improvements", "Issues", "Planning",
}

// SearchService fans a query out to every searchable collection.
type SearchService struct {
	posts     repository.PostRepository
	users     repository.UserRepository
	topics    repository.TopicRepository
	locations repository.LocationRepository
}

func NewSearchService(
	posts repository.PostRepository,
	users repository.UserRepository,
	topics repository.TopicRepository,
	locations repository.LocationRepository,
) *SearchService {
	return &SearchService{posts: posts, users: users, topics: topics, locations: locations}
}

// Search runs the requested category queries concurrently. Category failures
// degrade to empty or placeholder results, so the response always carries all
// four lists.
func (s *SearchService) Search(ctx context.Context, query, scope string) (*models.SearchResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	scope = strings.ToLower(strings.TrimSpace(scope))
	switch scope {
	case "", SearchAll, SearchIssues, SearchPeople, SearchTopics, SearchLocations:
	default:
		return nil, models.NewValidationError("type must be one of: all, issues, people, topics, locations")
	}

	results := &models.SearchResults{
		Issues:    []models.IssueResult{},
		People:    []models.PersonResult{},
		Topics:    []models.TopicResult{},
		Locations: []models.LocationResult{},
	}
	wants := func(category string) bool {
		return scope == "" || scope == SearchAll || scope == category
	}
	limit := searchLimitMixed
	if scope != "" && scope != SearchAll {
		limit = searchLimitSingle
	}

	g, gctx := errgroup.WithContext(ctx)
	if wants(SearchIssues) {
		g.Go(func() error {
			results.Issues = s.searchIssues(gctx, query, limit)
			return gctx.Err()
		})
	}
	if wants(SearchPeople) {
		g.Go(func() error {
			results.People = s.searchPeople(gctx, query, limit)
			return gctx.Err()
		})
	}
	if wants(SearchTopics) {
		g.Go(func() error {
			results.Topics = s.searchTopics(gctx, query, scope, limit)
			return gctx.Err()
		})
	}
	if wants(SearchLocations) {
		g.Go(func() error {
			results.Locations = s.searchLocations(gctx, query, scope, limit)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, models.NewInternalError(err)
	}
	return results, nil
}

func (s *SearchService) searchIssues(ctx context.Context, query string, limit int) []models.IssueResult {
	rows, err := s.posts.SearchIssues(ctx, query, limit)
	if err != nil {
		logSearchFailure(ctx, SearchIssues, err)
		return []models.IssueResult{}
	}
	out := make([]models.IssueResult, 0, len(rows))
	for _, r := range rows {
		author, username := r.AuthorName, r.AuthorUsername
		if author == "" {
			author, username = "Unknown", "unknown"
		}
		out = append(out, models.IssueResult{
			ID:             r.ID,
			Title:          r.Title,
			Description:    r.Description,
			Category:       r.Category,
			Status:         IssueStatus(r.Votes),
			Author:         author,
			AuthorUsername: username,
			PostedAt:       TimeAgo(r.CreatedAt),
			Votes:          r.Votes,
			Comments:       r.Comments,
		})
	}
	return out
}

func (s *SearchService) searchPeople(ctx context.Context, query string, limit int) []models.PersonResult {
	rows, err := s.users.Search(ctx, query, limit)
	if err != nil {
		logSearchFailure(ctx, SearchPeople, err)
		return []models.PersonResult{}
	}
	out := make([]models.PersonResult, 0, len(rows))
	for _, r := range rows {
		avatar := r.Avatar
		if avatar == "" {
			avatar = "https://ui-avatars.com/api/?name=" + url.QueryEscape(r.Name) + "&background=random"
		}
		bio := r.Bio
		if bio == "" {
			bio = "User profile for " + r.Name
		}
		out = append(out, models.PersonResult{
			ID:        r.ID,
			Name:      r.Name,
			Username:  r.Username,
			Avatar:    avatar,
			Bio:       bio,
			Followers: r.Followers,
		})
	}
	return out
}

func (s *SearchService) searchTopics(ctx context.Context, query, scope string, limit int) []models.TopicResult {
	topics, err := s.topics.Search(ctx, query, limit)
	if err != nil {
		logSearchFailure(ctx, SearchTopics, err)
		return topicFallbacks(query, scope)
	}
	if len(topics) == 0 && len(query) > 2 {
		return []models.TopicResult{{
			ID:              "new-topic-" + models.Slugify(query),
			Name:            query,
			Description:     fmt.Sprintf("Create a new topic for discussions about %s.", query),
			IsNewSuggestion: true,
		}}
	}
	out := make([]models.TopicResult, 0, len(topics))
	for _, t := range topics {
		out = append(out, models.TopicResult{
			ID:          strconv.FormatUint(uint64(t.ID), 10),
			Name:        t.Name,
			Slug:        t.Slug,
			Description: t.Description,
			Count:       t.PostCount,
		})
	}
	return out
}

func (s *SearchService) searchLocations(ctx context.Context, query, scope string, limit int) []models.LocationResult {
	locations, err := s.locations.Search(ctx, query, limit)
	if err != nil {
		logSearchFailure(ctx, SearchLocations, err)
		return locationFallbacks(query, scope)
	}
	out := make([]models.LocationResult, 0, len(locations))
	for _, l := range locations {
		out = append(out, models.LocationResult{
			ID:    strconv.FormatUint(uint64(l.ID), 10),
			Name:  l.Name,
			Count: l.PostCount,
			Type:  string(l.Type),
		})
	}
	return out
}

// topicFallbacks synthesizes topics from keywords related to the query.
func topicFallbacks(query, scope string) []models.TopicResult {
	capacity := 3
	if scope == SearchTopics {
		capacity = 10
	}
	q := strings.ToLower(query)
	out := make([]models.TopicResult, 0, capacity)
	for _, keyword := range topicKeywords {
		k := strings.ToLower(keyword)
		if !strings.Contains(k, q) && !strings.Contains(q, k) {
			continue
		}
		if len(out) == capacity {
			break
		}
		out = append(out, models.TopicResult{
			ID:          fmt.Sprintf("fallback-%d", len(out)),
			Name:        query + " " + keyword,
			Description: fmt.Sprintf("Issues related to %s %s.", query, k),
			IsFallback:  true,
		})
	}
	if len(out) == 0 {
		out = append(out, models.TopicResult{
			ID:          "fallback-generic",
			Name:        query,
			Description: fmt.Sprintf("Issues related to %s.", query),
			IsFallback:  true,
		})
	}
	return out
}

// locationFallbacks pairs the query with the known place types.
func locationFallbacks(query, scope string) []models.LocationResult {
	types := models.LocationTypes
	if scope != SearchLocations {
		types = types[:3]
	}
	out := make([]models.LocationResult, 0, len(types))
	for i, t := range types {
		out = append(out, models.LocationResult{
			ID:         fmt.Sprintf("fallback-%d", i),
			Name:       query + " " + string(t),
			Type:       string(t),
			IsFallback: true,
		})
	}
	return out
}

// Suggestions returns autocomplete entries: issues, then users, then topics
// and locations for queries of at least three characters.
func (s *SearchService) Suggestions(ctx context.Context, query string) ([]models.Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Suggestion{}, nil
	}

	var issues, users, topics, locations []models.Suggestion
	long := len(query) >= minSuggestQueryLen

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.posts.SuggestTitles(gctx, query, suggestionLimit)
		if err != nil {
			logSearchFailure(gctx, "issue_suggestions", err)
			return gctx.Err()
		}
		for _, r := range rows {
			issues = append(issues, models.Suggestion{Type: "issue", Text: r.Title, ID: strconv.FormatUint(uint64(r.ID), 10)})
		}
		return gctx.Err()
	})
	g.Go(func() error {
		rows, err := s.users.Search(gctx, query, suggestionLimit)
		if err != nil {
			logSearchFailure(gctx, "user_suggestions", err)
			return gctx.Err()
		}
		for _, r := range rows {
			users = append(users, models.Suggestion{
				Type:     "user",
				Text:     fmt.Sprintf("%s (@%s)", r.Name, r.Username),
				ID:       strconv.FormatUint(uint64(r.ID), 10),
				Username: r.Username,
			})
		}
		return gctx.Err()
	})
	if long {
		g.Go(func() error {
			found, err := s.topics.Search(gctx, query, suggestionLimit)
			if err != nil {
				logSearchFailure(gctx, "topic_suggestions", err)
				topics = []models.Suggestion{{Type: "topic", Text: query + " maintenance", ID: "topic-fallback"}}
				return gctx.Err()
			}
			for _, t := range found {
				topics = append(topics, models.Suggestion{Type: "topic", Text: t.Name, ID: strconv.FormatUint(uint64(t.ID), 10)})
			}
			return gctx.Err()
		})
		g.Go(func() error {
			found, err := s.locations.Search(gctx, query, suggestionLimit)
			if err != nil {
				logSearchFailure(gctx, "location_suggestions", err)
				locations = []models.Suggestion{{Type: "location", Text: query + " neighborhood", ID: "location-fallback"}}
				return gctx.Err()
			}
			for _, l := range found {
				locations = append(locations, models.Suggestion{Type: "location", Text: l.Name, ID: strconv.FormatUint(uint64(l.ID), 10)})
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, models.NewInternalError(err)
	}

	out := make([]models.Suggestion, 0, len(issues)+len(users)+len(topics)+len(locations))
	out = append(out, issues...)
	out = append(out, users...)
	out = append(out, topics...)
	out = append(out, locations...)
	return out, nil
}

func logSearchFailure(ctx context.Context, category string, err error) {
	observability.SearchFallbacks.WithLabelValues(category).Inc()
	middleware.Logger.WarnContext(ctx, "search category failed",
		slog.String("category", category), slog.String("error", err.Error()))
}
