package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"civicpulse/internal/config"
	"civicpulse/internal/models"
	"civicpulse/internal/repository"
	"civicpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn    func(context.Context, *models.Post) error
	getByIDFn   func(context.Context, uint, uint) (*models.Post, error)
	listFn      func(context.Context, repository.PostQuery, uint) ([]*models.Post, error)
	summaryFn   func(context.Context, uint) (*models.Post, error)
	voteFn      func(context.Context, uint, uint, int) (models.VoteResult, error)
	setLikeFn   func(context.Context, uint, uint, *bool) (models.LikeResult, error)
	sharesFn    func(context.Context, uint) (int, error)
	searchFn    func(context.Context, string, int) ([]models.IssueRow, error)
	suggestFn   func(context.Context, string, int) ([]models.IssueRow, error)
	lastListArg repository.PostQuery
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) List(ctx context.Context, q repository.PostQuery, viewerID uint) ([]*models.Post, error) {
	s.lastListArg = q
	return s.listFn(ctx, q, viewerID)
}
func (s *postRepoStub) Summary(ctx context.Context, id uint) (*models.Post, error) {
	return s.summaryFn(ctx, id)
}
func (s *postRepoStub) Vote(ctx context.Context, postID, userID uint, direction int) (models.VoteResult, error) {
	return s.voteFn(ctx, postID, userID, direction)
}
func (s *postRepoStub) SetLike(ctx context.Context, postID, userID uint, liked *bool) (models.LikeResult, error) {
	return s.setLikeFn(ctx, postID, userID, liked)
}
func (s *postRepoStub) IncrementShares(ctx context.Context, postID uint) (int, error) {
	return s.sharesFn(ctx, postID)
}
func (s *postRepoStub) SearchIssues(ctx context.Context, query string, limit int) ([]models.IssueRow, error) {
	return s.searchFn(ctx, query, limit)
}
func (s *postRepoStub) SuggestTitles(ctx context.Context, query string, limit int) ([]models.IssueRow, error) {
	return s.suggestFn(ctx, query, limit)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, p *models.Post) error { p.ID = 1; return nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listFn:    func(_ context.Context, _ repository.PostQuery, _ uint) ([]*models.Post, error) { return nil, nil },
		summaryFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 2, Title: "Pothole"}, nil
		},
		voteFn:    func(_ context.Context, _, _ uint, d int) (models.VoteResult, error) { return models.VoteResult{Votes: d}, nil },
		setLikeFn: func(_ context.Context, _, _ uint, _ *bool) (models.LikeResult, error) { return models.LikeResult{}, nil },
		sharesFn:  func(_ context.Context, _ uint) (int, error) { return 1, nil },
		searchFn:  func(_ context.Context, _ string, _ int) ([]models.IssueRow, error) { return nil, nil },
		suggestFn: func(_ context.Context, _ string, _ int) ([]models.IssueRow, error) { return nil, nil },
	}
}

func validPostInput() CreatePostInput {
	return CreatePostInput{
		Title:       "Broken streetlight",
		Description: "The streetlight on 5th avenue has been out for a week.",
		Category:    string(models.CategoryPublicSafety),
	}
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	svc := NewPostService(noopPostRepo(), NewUploadService(&config.Config{UploadDir: t.TempDir()}), nil)
	ctx := context.Background()
	author := &models.User{ID: 1, Name: "Alice"}

	tests := []struct {
		name   string
		mutate func(*CreatePostInput)
	}{
		{"empty title", func(in *CreatePostInput) { in.Title = "  " }},
		{"short title", func(in *CreatePostInput) { in.Title = "ab" }},
		{"long title", func(in *CreatePostInput) { in.Title = strings.Repeat("a", 201) }},
		{"short description", func(in *CreatePostInput) { in.Description = "too short" }},
		{"missing category", func(in *CreatePostInput) { in.Category = "" }},
		{"unknown category", func(in *CreatePostInput) { in.Category = "Weather" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validPostInput()
			tt.mutate(&in)
			_, err := svc.CreatePost(ctx, author, in)
			assertValidationError(t, err)
		})
	}

	_, err := svc.CreatePost(ctx, nil, validPostInput())
	assertUnauthorizedError(t, err)
}

func TestPostService_CreatePost_ShapesResponse(t *testing.T) {
	svc := NewPostService(noopPostRepo(), NewUploadService(&config.Config{UploadDir: t.TempDir()}), nil)
	author := &models.User{ID: 1, Name: "Alice", Username: "alice"}

	post, err := svc.CreatePost(context.Background(), author, validPostInput())
	require.NoError(t, err)
	assert.Equal(t, uint(1), post.ID)
	assert.Equal(t, "Alice", post.AuthorName)
	assert.Equal(t, "just now", post.TimeAgo)
	assert.NotNil(t, post.Comments)
	assert.Empty(t, post.ImageURL)
}

func TestPostService_CreatePost_RemovesImageOnStoreFailure(t *testing.T) {
	dir := t.TempDir()
	repo := noopPostRepo()
	repo.createFn = func(context.Context, *models.Post) error {
		return models.NewInternalError(errors.New("db down"))
	}
	svc := NewPostService(repo, NewUploadService(&config.Config{UploadDir: dir}), nil)

	in := validPostInput()
	in.Image = &UploadInput{Filename: "a.png", ContentType: "image/png", Content: testutil.PNGBytes(t, 64, 64)}
	_, err := svc.CreatePost(context.Background(), &models.User{ID: 1}, in)
	assertAppCode(t, err, models.CodeInternal)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestPostService_CreatePost_InvalidImageWritesNothing(t *testing.T) {
	dir := t.TempDir()
	created := false
	repo := noopPostRepo()
	repo.createFn = func(context.Context, *models.Post) error { created = true; return nil }
	svc := NewPostService(repo, NewUploadService(&config.Config{UploadDir: dir}), nil)

	in := validPostInput()
	in.Image = &UploadInput{Filename: "a.svg", ContentType: "image/svg+xml", Content: []byte("<svg/>")}
	_, err := svc.CreatePost(context.Background(), &models.User{ID: 1}, in)
	assertValidationError(t, err)
	assert.False(t, created)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestPostService_ListPosts_Defaults(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	old := &models.Post{ID: 3, CreatedAt: time.Now().Add(-3 * time.Hour)}
	repo.listFn = func(context.Context, repository.PostQuery, uint) ([]*models.Post, error) {
		return []*models.Post{old}, nil
	}
	svc := NewPostService(repo, nil, nil)

	posts, err := svc.ListPosts(context.Background(), ListPostsInput{Limit: 1000, Offset: -5})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "3 hours ago", posts[0].TimeAgo)
	assert.Equal(t, repository.PostQuery{Sort: repository.SortVotes, Limit: maxPostLimit}, repo.lastListArg)

	_, err = svc.ListPosts(context.Background(), ListPostsInput{Sort: "NEW", Category: "Traffic"})
	require.NoError(t, err)
	assert.Equal(t, repository.SortNew, repo.lastListArg.Sort)
	assert.Zero(t, repo.lastListArg.Limit, "no limit means the whole feed")
	assert.Equal(t, models.CategoryTraffic, repo.lastListArg.Category)

	_, err = svc.ListPosts(context.Background(), ListPostsInput{Sort: "random"})
	require.NoError(t, err)
	assert.Equal(t, repository.SortVotes, repo.lastListArg.Sort)
	_, err = svc.ListPosts(context.Background(), ListPostsInput{Category: "Weather"})
	assertValidationError(t, err)
}

func TestPostService_Vote_NotifiesOnlyOnTransitionToUpvote(t *testing.T) {
	t.Parallel()

	previous := 0
	repo := noopPostRepo()
	repo.voteFn = func(_ context.Context, _, _ uint, d int) (models.VoteResult, error) {
		res := models.VoteResult{Previous: previous, Votes: d}
		previous = d
		return res, nil
	}
	spy := &notifierSpy{}
	svc := NewPostService(repo, nil, spy)
	voter := &models.User{ID: 5, Name: "Voter"}
	ctx := context.Background()

	out, err := svc.Vote(ctx, voter, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, VoteOutcome{Votes: 1, UserVote: 1}, *out)
	assert.Equal(t, []uint{9}, spy.votes)

	_, err = svc.Vote(ctx, voter, 9, 1)
	require.NoError(t, err)
	assert.Len(t, spy.votes, 1, "repeated upvote does not notify again")

	_, err = svc.Vote(ctx, voter, 9, -1)
	require.NoError(t, err)
	_, err = svc.Vote(ctx, voter, 9, 1)
	require.NoError(t, err)
	assert.Len(t, spy.votes, 2)

	_, err = svc.Vote(ctx, voter, 9, 2)
	assertValidationError(t, err)
	_, err = svc.Vote(ctx, nil, 9, 1)
	assertUnauthorizedError(t, err)
}

func TestPostService_Vote_MissingPost(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.voteFn = func(_ context.Context, postID, _ uint, _ int) (models.VoteResult, error) {
		return models.VoteResult{}, models.NewNotFoundError("Post", postID)
	}
	spy := &notifierSpy{}
	svc := NewPostService(repo, nil, spy)

	_, err := svc.Vote(context.Background(), &models.User{ID: 1}, 404, 1)
	assertNotFound(t, err)
	assert.Empty(t, spy.votes)
}

func TestPostService_VoteAndLikeAgainstStore(t *testing.T) {
	db := testutil.NewTestDB(t)
	author := testutil.CreateUser(t, db, "Author", "author")
	voters := []*models.User{
		testutil.CreateUser(t, db, "V1", "v1"),
		testutil.CreateUser(t, db, "V2", "v2"),
		testutil.CreateUser(t, db, "V3", "v3"),
	}
	post := testutil.CreatePost(t, db, author.ID, "Flooded underpass", models.CategoryEnvironment)

	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil)
	svc := NewPostService(repository.NewPostRepository(db, nil), nil, notifications)
	ctx := context.Background()

	for _, v := range voters {
		_, err := svc.Vote(ctx, v, post.ID, 1)
		require.NoError(t, err)
	}
	out, err := svc.Vote(ctx, voters[0], post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Votes, "resubmitting the same direction nets zero")

	out, err = svc.Vote(ctx, voters[1], post.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Votes)

	_, err = svc.Vote(ctx, author, post.ID, 1)
	require.NoError(t, err)

	unread, err := notifications.UnreadCount(ctx, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread, "one per voter, none for the author's own vote")

	liked, err := svc.Like(ctx, voters[0].ID, post.ID, boolPtr(true))
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 1, Liked: true}, liked)
	liked, err = svc.Like(ctx, voters[0].ID, post.ID, boolPtr(false))
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 0, Liked: false}, liked)

	shares, err := svc.Share(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, shares)

	got, err := svc.GetPost(ctx, post.ID, voters[1].ID)
	require.NoError(t, err)
	assert.Equal(t, -1, got.UserVote)
	assert.Equal(t, 2, got.VotesCount)
	assert.Equal(t, "Author", got.AuthorName)
}
