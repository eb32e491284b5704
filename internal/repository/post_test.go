package repository

import (
	"context"
	"testing"
	"time"

	"civicpulse/internal/cache"
	"civicpulse/internal/models"
	"civicpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestPostRepository_VoteAggregateIsSumOfLatest(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "Author", "author")
	u1 := testutil.CreateUser(t, db, "One", "one")
	u2 := testutil.CreateUser(t, db, "Two", "two")
	u3 := testutil.CreateUser(t, db, "Three", "three")
	post := testutil.CreatePost(t, db, author.ID, "Pothole on Main", models.CategoryTraffic)

	steps := []struct {
		user      uint
		direction int
		previous  int
		votes     int
	}{
		{u1.ID, 1, 0, 1},
		{u2.ID, 1, 0, 2},
		{u3.ID, -1, 0, 1},
		{u1.ID, 1, 1, 1},  // same direction again nets zero
		{u3.ID, 1, -1, 3}, // flip
		{u2.ID, 0, 1, 2},  // clear
		{u2.ID, -1, 0, 1},
	}
	for i, s := range steps {
		res, err := repo.Vote(ctx, post.ID, s.user, s.direction)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, s.previous, res.Previous, "step %d previous", i)
		assert.Equal(t, s.votes, res.Votes, "step %d votes", i)
	}

	var rows int64
	require.NoError(t, db.Model(&models.PostVote{}).Where("post_id = ?", post.ID).Count(&rows).Error)
	assert.EqualValues(t, 3, rows)

	got, err := repo.GetByID(ctx, post.ID, u3.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VotesCount)
	assert.Equal(t, 1, got.UserVote)

	_, err = repo.Vote(ctx, 9999, u1.ID, 1)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_SetLike(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "Author", "author")
	fan := testutil.CreateUser(t, db, "Fan", "fan")
	other := testutil.CreateUser(t, db, "Other", "other")
	post := testutil.CreatePost(t, db, author.ID, "Graffiti", models.CategoryEnvironment)

	res, err := repo.SetLike(ctx, post.ID, fan.ID, boolPtr(true))
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 1, Liked: true}, res)

	// Target state already reached: no change.
	res, err = repo.SetLike(ctx, post.ID, fan.ID, boolPtr(true))
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 1, Liked: true}, res)

	res, err = repo.SetLike(ctx, post.ID, other.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 2, Liked: true}, res)

	res, err = repo.SetLike(ctx, post.ID, other.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 1, Liked: false}, res)

	res, err = repo.SetLike(ctx, post.ID, fan.ID, boolPtr(false))
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Likes: 0, Liked: false}, res)

	_, err = repo.SetLike(ctx, 9999, fan.ID, nil)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_IncrementShares(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "Author", "author")
	post := testutil.CreatePost(t, db, author.ID, "Blocked drain", models.CategorySanitation)

	for want := 1; want <= 3; want++ {
		shares, err := repo.IncrementShares(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, want, shares)
	}

	_, err := repo.IncrementShares(ctx, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_GetByIDDetails(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "Author Person", "author")
	viewer := testutil.CreateUser(t, db, "Viewer", "viewer")
	post := testutil.CreatePost(t, db, author.ID, "Fallen tree", models.CategoryEnvironment)

	first := &models.Comment{PostID: post.ID, UserID: viewer.ID, Content: "first", CreatedAt: time.Now().Add(-time.Hour)}
	second := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "second"}
	require.NoError(t, db.Create(first).Error)
	require.NoError(t, db.Create(second).Error)
	require.NoError(t, db.Create(&models.CommentLike{CommentID: first.ID, UserID: viewer.ID}).Error)
	require.NoError(t, db.Create(&models.PostLike{PostID: post.ID, UserID: viewer.ID}).Error)

	got, err := repo.GetByID(ctx, post.ID, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Author Person", got.AuthorName)
	assert.Equal(t, "author", got.AuthorUsername)
	assert.Equal(t, 1, got.LikesCount)
	assert.True(t, got.UserLiked)
	assert.Equal(t, 2, got.CommentsCount)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "first", got.Comments[0].Content)
	assert.Equal(t, "Viewer", got.Comments[0].AuthorName)
	assert.Equal(t, 1, got.Comments[0].LikesCount)
	assert.True(t, got.Comments[0].UserLiked)
	assert.False(t, got.Comments[1].UserLiked)

	anon, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, anon.UserLiked)
	assert.Equal(t, 0, anon.UserVote)

	_, err = repo.GetByID(ctx, 9999, 0)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ListSortAndFilter(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "Author", "author")
	voter := testutil.CreateUser(t, db, "Voter", "voter")
	old := testutil.CreatePost(t, db, author.ID, "Old but popular", models.CategoryTraffic)
	require.NoError(t, db.Model(old).UpdateColumn("created_at", time.Now().Add(-48*time.Hour)).Error)
	fresh := testutil.CreatePost(t, db, author.ID, "Fresh", models.CategorySanitation)
	shared := testutil.CreatePost(t, db, author.ID, "Shared a lot", models.CategoryTraffic)
	require.NoError(t, db.Model(shared).UpdateColumn("created_at", time.Now().Add(-24*time.Hour)).Error)

	_, err := repo.Vote(ctx, old.ID, voter.ID, 1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = repo.IncrementShares(ctx, shared.ID)
		require.NoError(t, err)
	}

	ids := func(posts []*models.Post) []uint {
		out := make([]uint, 0, len(posts))
		for _, p := range posts {
			out = append(out, p.ID)
		}
		return out
	}

	byVotes, err := repo.List(ctx, PostQuery{Sort: SortVotes, Limit: 10}, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{old.ID, fresh.ID, shared.ID}, ids(byVotes))

	byNew, err := repo.List(ctx, PostQuery{Sort: SortNew, Limit: 10}, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{fresh.ID, shared.ID, old.ID}, ids(byNew))

	trending, err := repo.List(ctx, PostQuery{Sort: SortTrending, Limit: 10}, voter.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{shared.ID, old.ID, fresh.ID}, ids(trending))
	assert.Equal(t, 1, trending[1].UserVote)

	traffic, err := repo.List(ctx, PostQuery{Sort: SortNew, Category: models.CategoryTraffic, Limit: 10}, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{shared.ID, old.ID}, ids(traffic))

	page, err := repo.List(ctx, PostQuery{Sort: SortNew, Limit: 1, Offset: 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{shared.ID}, ids(page))
}

func TestPostRepository_AnonymousReadsUseVersionedCache(t *testing.T) {
	db := testutil.NewTestDB(t)
	mr, c := newTestCache(t)
	repo := NewPostRepository(db, c)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "Author", "author")
	voter := testutil.CreateUser(t, db, "Voter", "voter")
	first := &models.Post{Title: "First", Description: "d", Category: models.CategoryTraffic, UserID: author.ID}
	require.NoError(t, repo.Create(ctx, first))

	list, err := repo.List(ctx, PostQuery{Sort: SortNew, Limit: 10}, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	single, err := repo.GetByID(ctx, first.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, single.VotesCount)
	assert.True(t, mr.Exists(cache.PostKey(first.ID)))

	second := &models.Post{Title: "Second", Description: "d", Category: models.CategoryTraffic, UserID: author.ID}
	require.NoError(t, repo.Create(ctx, second))

	list, err = repo.List(ctx, PostQuery{Sort: SortNew, Limit: 10}, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = repo.Vote(ctx, first.ID, voter.ID, 1)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PostKey(first.ID)))

	single, err = repo.GetByID(ctx, first.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, single.VotesCount)
	assert.NotNil(t, single.Comments)
}

func TestPostRepository_SearchIssues(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "Reporter", "reporter")
	voter := testutil.CreateUser(t, db, "Voter", "voter")
	low := testutil.CreatePost(t, db, author.ID, "Park bench broken", models.CategoryPublicSafety)
	high := testutil.CreatePost(t, db, author.ID, "Litter in the park", models.CategorySanitation)
	testutil.CreatePost(t, db, author.ID, "Traffic light", models.CategoryTraffic)
	_, err := repo.Vote(ctx, high.ID, voter.ID, 1)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Comment{PostID: high.ID, UserID: voter.ID, Content: "yes"}).Error)

	rows, err := repo.SearchIssues(ctx, "park", 20)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, high.ID, rows[0].ID)
	assert.Equal(t, 1, rows[0].Votes)
	assert.Equal(t, 1, rows[0].Comments)
	assert.Equal(t, "Reporter", rows[0].AuthorName)
	assert.Equal(t, low.ID, rows[1].ID)

	rows, err = repo.SearchIssues(ctx, "public safety", 20)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	titles, err := repo.SuggestTitles(ctx, "PARK", 1)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	assert.Contains(t, titles[0].Title, "ark")
}
