package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Road Safety":          "road-safety",
		"  Parks & Recreation ": "parks-recreation",
		"Bus-Stop   Repairs!":  "busstop-repairs",
		"Snake_case Name":      "snake-case-name",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestTopicBeforeSaveRegeneratesSlug(t *testing.T) {
	topic := &Topic{Name: "Street Lights"}
	require.NoError(t, topic.BeforeSave(nil))
	assert.Equal(t, "street-lights", topic.Slug)

	topic.Name = "Street Lighting"
	require.NoError(t, topic.BeforeSave(nil))
	assert.Equal(t, "street-lighting", topic.Slug)
}

func TestLocationBeforeSaveDefaultsType(t *testing.T) {
	loc := &Location{Name: "Central Park"}
	require.NoError(t, loc.BeforeSave(nil))
	assert.Equal(t, "central-park", loc.Slug)
	assert.Equal(t, LocationOther, loc.Type)
}

func TestReferenceJSON(t *testing.T) {
	raw, err := json.Marshal(Notification{Related: PostRef(7)})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"related":{"kind":"post","id":7}`)

	raw, err = json.Marshal(Notification{})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"related":null`)
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, CategoryPublicSafety.Valid())
	assert.False(t, PostCategory("Weather").Valid())
	assert.True(t, NotificationSystem.Valid())
	assert.False(t, NotificationType("spam").Valid())
	assert.True(t, LocationOther.Valid())
	assert.False(t, LocationType("Galaxy").Valid())
}

func TestAppErrorStatus(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, NewValidationError("x").Status())
	assert.Equal(t, fiber.StatusUnauthorized, NewTokenExpiredError().Status())
	assert.Equal(t, fiber.StatusForbidden, NewForbiddenError("x").Status())
	assert.Equal(t, fiber.StatusNotFound, NewNotFoundError("Post", 1).Status())
	assert.Equal(t, fiber.StatusInternalServerError, NewInternalError(errors.New("boom")).Status())

	wrapped := fmt.Errorf("loading: %w", NewNotFoundError("Post", 1))
	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(errors.New("plain"), CodeNotFound))
}

func TestRespondWithErrorHidesInternalDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("pq: password authentication failed")))
	})
	app.Get("/raw", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, errors.New("dial tcp 10.0.0.1:5432"))
	})

	for _, path := range []string{"/internal", "/raw"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Internal server error","code":"INTERNAL_ERROR"}`, string(body))
	}
}
