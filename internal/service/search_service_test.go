package service

import (
	"context"
	"errors"
	"testing"

	"civicpulse/internal/models"
	"civicpulse/internal/repository"
	"civicpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errCatalogDown = errors.New("catalog unavailable")

type failingTopicRepo struct {
	repository.TopicRepository
}

func (failingTopicRepo) Search(context.Context, string, int) ([]models.Topic, error) {
	return nil, errCatalogDown
}

type failingLocationRepo struct {
	repository.LocationRepository
}

func (failingLocationRepo) Search(context.Context, string, int) ([]models.Location, error) {
	return nil, errCatalogDown
}

func newSearchFixture(t *testing.T, catalogDown bool) (*SearchService, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	var topics repository.TopicRepository = repository.NewTopicRepository(db)
	var locations repository.LocationRepository = repository.NewLocationRepository(db)
	if catalogDown {
		topics, locations = failingTopicRepo{}, failingLocationRepo{}
	}
	svc := NewSearchService(
		repository.NewPostRepository(db, nil),
		repository.NewUserRepository(db, nil),
		topics,
		locations,
	)
	return svc, db
}

func TestSearchService_Search_Validation(t *testing.T) {
	t.Parallel()

	svc := NewSearchService(nil, nil, nil, nil)
	_, err := svc.Search(context.Background(), "   ", SearchAll)
	assertValidationError(t, err)

	_, err = svc.Search(context.Background(), "park", "events")
	assertValidationError(t, err)
}

func TestSearchService_Search_AllCategories(t *testing.T) {
	svc, db := newSearchFixture(t, false)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "Alice Parker", "alice")
	testutil.CreatePost(t, db, alice.ID, "Broken park bench", models.CategoryEnvironment)
	require.NoError(t, repository.NewTopicRepository(db).Create(ctx, &models.Topic{Name: "Park Maintenance", IsActive: true}))
	require.NoError(t, repository.NewLocationRepository(db).Create(ctx, &models.Location{
		Name: "Riverside Park", Type: models.LocationPark, IsActive: true,
	}))

	res, err := svc.Search(ctx, "park", "")
	require.NoError(t, err)

	require.Len(t, res.Issues, 1)
	issue := res.Issues[0]
	assert.Equal(t, "Broken park bench", issue.Title)
	assert.Equal(t, "Alice Parker", issue.Author)
	assert.Equal(t, "alice", issue.AuthorUsername)
	assert.Equal(t, "Open", issue.Status)
	assert.Equal(t, "just now", issue.PostedAt)

	require.Len(t, res.People, 1)
	person := res.People[0]
	assert.Equal(t, "User profile for Alice Parker", person.Bio)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Alice+Parker&background=random", person.Avatar)

	require.Len(t, res.Topics, 1)
	assert.Equal(t, "Park Maintenance", res.Topics[0].Name)
	assert.False(t, res.Topics[0].IsFallback)

	require.Len(t, res.Locations, 1)
	assert.Equal(t, "Riverside Park", res.Locations[0].Name)
	assert.Equal(t, string(models.LocationPark), res.Locations[0].Type)
}

func TestSearchService_Search_ScopeLeavesOtherCategoriesEmpty(t *testing.T) {
	svc, db := newSearchFixture(t, false)
	alice := testutil.CreateUser(t, db, "Alice", "alice")
	testutil.CreatePost(t, db, alice.ID, "Flooded underpass", models.CategoryTraffic)

	res, err := svc.Search(context.Background(), "alice", SearchPeople)
	require.NoError(t, err)
	assert.Len(t, res.People, 1)
	assert.NotNil(t, res.Issues)
	assert.Empty(t, res.Issues)
	assert.NotNil(t, res.Topics)
	assert.Empty(t, res.Topics)
	assert.NotNil(t, res.Locations)
	assert.Empty(t, res.Locations)
}

func TestSearchService_Search_SuggestsNewTopic(t *testing.T) {
	svc, _ := newSearchFixture(t, false)

	res, err := svc.Search(context.Background(), "Bike Lanes", SearchTopics)
	require.NoError(t, err)
	require.Len(t, res.Topics, 1)
	assert.Equal(t, "new-topic-bike-lanes", res.Topics[0].ID)
	assert.True(t, res.Topics[0].IsNewSuggestion)

	res, err = svc.Search(context.Background(), "zz", SearchTopics)
	require.NoError(t, err)
	assert.Empty(t, res.Topics, "short queries get no new-topic suggestion")
}

func TestSearchService_Search_CatalogFallbacks(t *testing.T) {
	svc, _ := newSearchFixture(t, true)
	ctx := context.Background()

	tests := []struct {
		name          string
		query         string
		scope         string
		wantTopics    int
		wantLocations int
		genericTopic  bool
	}{
		{"mixed scope caps keyword topics", "e", SearchAll, 3, 3, false},
		{"topic scope widens keyword topics", "e", SearchTopics, 5, 0, false},
		{"no keyword match", "park", SearchAll, 1, 3, true},
		{"location scope lists every type", "park", SearchLocations, 0, len(models.LocationTypes), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Search(ctx, tt.query, tt.scope)
			require.NoError(t, err)
			assert.Len(t, res.Topics, tt.wantTopics)
			assert.Len(t, res.Locations, tt.wantLocations)
			for _, topic := range res.Topics {
				assert.True(t, topic.IsFallback)
			}
			for _, loc := range res.Locations {
				assert.True(t, loc.IsFallback)
				assert.Equal(t, tt.query+" "+loc.Type, loc.Name)
			}
			if tt.genericTopic {
				assert.Equal(t, "fallback-generic", res.Topics[0].ID)
			}
		})
	}
}

func TestSearchService_Suggestions(t *testing.T) {
	svc, db := newSearchFixture(t, true)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "Parker Jones", "parker")
	testutil.CreatePost(t, db, alice.ID, "Park lights out", models.CategoryPublicSafety)

	got, err := svc.Suggestions(ctx, "  ")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = svc.Suggestions(ctx, "pa")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "issue", got[0].Type)
	assert.Equal(t, "user", got[1].Type)
	assert.Equal(t, "Parker Jones (@parker)", got[1].Text)

	got, err = svc.Suggestions(ctx, "park")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, models.Suggestion{Type: "topic", Text: "park maintenance", ID: "topic-fallback"}, got[2])
	assert.Equal(t, models.Suggestion{Type: "location", Text: "park neighborhood", ID: "location-fallback"}, got[3])
}

func TestTopicFallbacks_Deterministic(t *testing.T) {
	t.Parallel()

	got := topicFallbacks("Safety", SearchAll)
	require.Len(t, got, 1)
	assert.Equal(t, "fallback-0", got[0].ID)
	assert.Equal(t, "Safety Safety", got[0].Name)
	assert.Equal(t, got, topicFallbacks("Safety", SearchAll))
}
