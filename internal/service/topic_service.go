package service

import (
	"context"
	"strings"

	"civicpulse/internal/models"
	"civicpulse/internal/repository"
	"civicpulse/internal/validation"
)

const catalogListLimit = 100

// TopicService manages the topic and location catalog.
type TopicService struct {
	topics    repository.TopicRepository
	locations repository.LocationRepository
}

type CreateTopicInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type CreateLocationInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Type        string   `json:"type" validate:"omitempty,locationtype"`
	Latitude    *float64 `json:"latitude" validate:"omitnil,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitnil,longitude"`
}

func NewTopicService(topics repository.TopicRepository, locations repository.LocationRepository) *TopicService {
	return &TopicService{topics: topics, locations: locations}
}

func (s *TopicService) ListTopics(ctx context.Context) ([]models.Topic, error) {
	return s.topics.List(ctx, catalogListLimit)
}

func (s *TopicService) CreateTopic(ctx context.Context, creatorID uint, in CreateTopicInput) (*models.Topic, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if models.Slugify(in.Name) == "" {
		return nil, models.NewValidationError("name must contain letters or digits")
	}
	topic := &models.Topic{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
		CreatedByID: &creatorID,
	}
	if err := s.topics.Create(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// FollowTopic adds or removes userID from a topic's followers and returns the
// topic with its refreshed follower count.
func (s *TopicService) FollowTopic(ctx context.Context, userID uint, slug string, follow bool) (*models.Topic, error) {
	topic, err := s.topics.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	if follow {
		_, err = s.topics.Follow(ctx, topic.ID, userID)
	} else {
		_, err = s.topics.Unfollow(ctx, topic.ID, userID)
	}
	if err != nil {
		return nil, err
	}
	return s.topics.GetBySlug(ctx, topic.Slug)
}

func (s *TopicService) ListLocations(ctx context.Context) ([]models.Location, error) {
	return s.locations.List(ctx, catalogListLimit)
}

func (s *TopicService) CreateLocation(ctx context.Context, creatorID uint, in CreateLocationInput) (*models.Location, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if models.Slugify(in.Name) == "" {
		return nil, models.NewValidationError("name must contain letters or digits")
	}
	location := &models.Location{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Type:        models.LocationType(in.Type),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		IsActive:    true,
		CreatedByID: &creatorID,
	}
	if err := s.locations.Create(ctx, location); err != nil {
		return nil, err
	}
	return location, nil
}
