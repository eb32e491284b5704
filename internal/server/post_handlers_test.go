package server

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"civicpulse/internal/models"
	"civicpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost_Multipart(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "Alice Park", "alice")

	resp := env.doMultipart(t, http.MethodPost, "/api/v1/posts", token, map[string]string{
		"title":       "Broken streetlight",
		"description": "The light on Elm Street has been out all week.",
		"category":    string(models.CategoryPublicSafety),
	}, testutil.FilePart{
		Field:       "image",
		Filename:    "light.png",
		ContentType: "image/png",
		Data:        testutil.PNGBytes(t, 40, 30),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[envelope[models.Post]](t, resp)
	assert.True(t, created.Success)
	assert.Equal(t, "Broken streetlight", created.Data.Title)
	assert.Equal(t, "Alice Park", created.Data.AuthorName)
	assert.Equal(t, 0, created.Data.VotesCount)
	require.True(t, strings.HasPrefix(created.Data.ImageURL, "/uploads/"), created.Data.ImageURL)

	onDisk := filepath.Join(env.cfg.UploadDir, strings.TrimPrefix(created.Data.ImageURL, "/uploads/"))
	_, err := os.Stat(onDisk)
	assert.NoError(t, err)
}

func TestCreatePost_WithoutImage(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "Alice Park", "alice")

	resp := env.doMultipart(t, http.MethodPost, "/api/v1/posts", token, map[string]string{
		"title":       "Overflowing bins",
		"description": "Bins at the corner of 5th and Main are overflowing.",
		"category":    string(models.CategorySanitation),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Empty(t, decode[envelope[models.Post]](t, resp).Data.ImageURL)
}

func TestCreatePost_Rejections(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "Alice Park", "alice")

	valid := map[string]string{
		"title":       "Pothole on Oak",
		"description": "Deep pothole near the school crossing.",
		"category":    string(models.CategoryTraffic),
	}

	tests := []struct {
		name   string
		fields map[string]string
		file   *testutil.FilePart
		msg    string
	}{
		{
			name:   "bad category",
			fields: map[string]string{"title": "Pothole on Oak", "description": "Deep pothole near the school.", "category": "Weather"},
		},
		{
			name:   "short title",
			fields: map[string]string{"title": "Hi", "description": "Deep pothole near the school.", "category": "Traffic"},
		},
		{
			name:   "disallowed extension",
			fields: valid,
			file:   &testutil.FilePart{Field: "image", Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
			msg:    "Only .png, .jpg, .jpeg and .gif format allowed!",
		},
		{
			name:   "oversized",
			fields: valid,
			file: &testutil.FilePart{
				Field: "image", Filename: "big.png", ContentType: "image/png",
				Data: bytes.Repeat([]byte{0x89}, 1<<20+16),
			},
			msg: "File too large (max 1MB)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var files []testutil.FilePart
			if tt.file != nil {
				files = append(files, *tt.file)
			}
			resp := env.doMultipart(t, http.MethodPost, "/api/v1/posts", token, tt.fields, files...)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[models.ErrorResponse](t, resp)
			assert.Equal(t, models.CodeValidation, body.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, body.Error)
			}
		})
	}

	entries, err := os.ReadDir(env.cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads must not leave files behind")

	var count int64
	require.NoError(t, env.db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreatePost_BodyOverLimit(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "Alice Park", "alice")

	resp := env.doMultipart(t, http.MethodPost, "/api/v1/posts", token,
		map[string]string{"title": "Pothole on Oak", "description": "Deep pothole near the school.", "category": "Traffic"},
		testutil.FilePart{Field: "image", Filename: "huge.png", ContentType: "image/png", Data: bytes.Repeat([]byte{0x89}, 3<<20)},
	)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, models.CodeValidation, body.Code)
	assert.Equal(t, "File too large (max 1MB)", body.Error)
}

func TestCreatePost_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.doMultipart(t, http.MethodPost, "/api/v1/posts", "", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetPosts_RawListAndViewerState(t *testing.T) {
	env := newTestEnv(t)
	author, _ := env.user(t, "Alice Park", "alice")
	_, token := env.user(t, "Bob Stone", "bob")
	first := testutil.CreatePost(t, env.db, author.ID, "Flooded underpass", models.CategoryEnvironment)
	testutil.CreatePost(t, env.db, author.ID, "Missing stop sign", models.CategoryTraffic)

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/vote", first.ID), token, map[string]int{"direction": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/posts", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	posts := decode[[]models.Post](t, resp)
	require.Len(t, posts, 2)
	assert.Equal(t, first.ID, posts[0].ID, "default sort is by votes")
	assert.Equal(t, 1, posts[0].VotesCount)
	assert.Equal(t, 1, posts[0].UserVote)
	assert.Equal(t, "Alice Park", posts[0].AuthorName)

	resp = env.do(t, http.MethodGet, "/api/v1/posts?category=Traffic", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	traffic := decode[[]models.Post](t, resp)
	require.Len(t, traffic, 1)
	assert.Equal(t, "Missing stop sign", traffic[0].Title)
	assert.Zero(t, traffic[0].UserVote)

	resp = env.do(t, http.MethodGet, "/api/v1/posts?sort=sideways", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fallback := decode[[]models.Post](t, resp)
	require.Len(t, fallback, 2)
	assert.Equal(t, first.ID, fallback[0].ID, "unknown sort falls back to votes")
}

func TestGetPosts_WholeFeedUnlessLimited(t *testing.T) {
	env := newTestEnv(t)
	author, _ := env.user(t, "Alice Park", "alice")
	for i := range 25 {
		testutil.CreatePost(t, env.db, author.ID, fmt.Sprintf("Pothole on 5th block %d", i), models.CategorySanitation)
	}

	resp := env.do(t, http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Post](t, resp), 25)

	resp = env.do(t, http.MethodGet, "/api/v1/posts?limit=10&offset=20", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Post](t, resp), 5)
}

func TestGetPost(t *testing.T) {
	env := newTestEnv(t)
	author, _ := env.user(t, "Alice Park", "alice")
	post := testutil.CreatePost(t, env.db, author.ID, "Graffiti on bridge", models.CategoryEnvironment)

	resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", post.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.Post](t, resp)
	assert.Equal(t, post.ID, got.ID)
	assert.NotNil(t, got.Comments)

	resp = env.do(t, http.MethodGet, "/api/v1/posts/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid ID", decode[models.ErrorResponse](t, resp).Error)
}

func TestVotePost(t *testing.T) {
	env := newTestEnv(t)
	author, _ := env.user(t, "Alice Park", "alice")
	_, token := env.user(t, "Bob Stone", "bob")
	post := testutil.CreatePost(t, env.db, author.ID, "Fallen tree", models.CategoryEnvironment)
	path := fmt.Sprintf("/api/v1/posts/%d/vote", post.ID)

	steps := []struct {
		direction any
		status    int
		votes     int
	}{
		{1, http.StatusOK, 1},
		{1, http.StatusOK, 1},
		{-1, http.StatusOK, -1},
		{0, http.StatusOK, 0},
		{2, http.StatusBadRequest, 0},
		{nil, http.StatusBadRequest, 0},
	}
	for i, step := range steps {
		var body any = map[string]any{"direction": step.direction}
		resp := env.do(t, http.MethodPost, path, token, body)
		require.Equal(t, step.status, resp.StatusCode, "step %d", i)
		if step.status == http.StatusOK {
			out := decode[envelope[map[string]int]](t, resp)
			assert.Equal(t, step.votes, out.Data["votes"], "step %d", i)
			assert.Equal(t, step.direction, out.Data["user_vote"], "step %d", i)
		}
	}

	var n []models.Notification
	require.NoError(t, env.db.Where("recipient_id = ?", author.ID).Find(&n).Error)
	require.Len(t, n, 1, "only the first transition to an upvote notifies")
	assert.Equal(t, models.NotificationVote, n[0].Type)
	assert.Equal(t, fmt.Sprintf("/post/%d", post.ID), n[0].URL)
}

func TestLikeAndSharePost(t *testing.T) {
	env := newTestEnv(t)
	author, _ := env.user(t, "Alice Park", "alice")
	_, token := env.user(t, "Bob Stone", "bob")
	post := testutil.CreatePost(t, env.db, author.ID, "Broken bench", models.CategoryPublicSafety)
	likePath := fmt.Sprintf("/api/v1/posts/%d/like", post.ID)

	resp := env.do(t, http.MethodPost, likePath, token, map[string]bool{"liked": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.LikeResult{Likes: 1, Liked: true}, decode[envelope[models.LikeResult]](t, resp).Data)

	resp = env.do(t, http.MethodPost, likePath, token, map[string]bool{"liked": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.LikeResult{Likes: 1, Liked: true}, decode[envelope[models.LikeResult]](t, resp).Data)

	resp = env.do(t, http.MethodPost, likePath, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.LikeResult{Likes: 0, Liked: false}, decode[envelope[models.LikeResult]](t, resp).Data)

	sharePath := fmt.Sprintf("/api/v1/posts/%d/share", post.ID)
	for want := 1; want <= 2; want++ {
		resp = env.do(t, http.MethodPost, sharePath, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, want, decode[envelope[map[string]int]](t, resp).Data["shares"])
	}

	resp = env.do(t, http.MethodPost, "/api/v1/posts/9999/share", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
