package service

import (
	"context"
	"strings"

	"civicpulse/internal/cache"
	"civicpulse/internal/models"
	"civicpulse/internal/repository"
	"civicpulse/internal/validation"
)

const topContributorsLimit = 5

type UserService struct {
	userRepo repository.UserRepository
	uploads  *UploadService
	cache    *cache.Cache
	notifier ActivityNotifier
}

// UpdateProfileInput carries the optional fields of a profile edit. Nil
// fields are left unchanged.
type UpdateProfileInput struct {
	Name   *string `json:"name" validate:"omitnil,min=2,max=50"`
	Bio    *string `json:"bio" validate:"omitnil,max=500"`
	Avatar *UploadInput
}

// FollowState is the relationship after a follow or unfollow.
type FollowState struct {
	Following bool  `json:"following"`
	Followers int64 `json:"followers"`
}

func NewUserService(userRepo repository.UserRepository, uploads *UploadService, c *cache.Cache, notifier ActivityNotifier) *UserService {
	return &UserService{userRepo: userRepo, uploads: uploads, cache: c, notifier: notifier}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetProfile returns the caller's own profile, email included.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withStats(ctx, *user)
}

// GetProfileByUsername returns another user's public profile.
func (s *UserService) GetProfileByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("username is required")
	}
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.withStats(ctx, user.Public())
}

// UpdateProfile applies the edit. A new avatar replaces the old file, which is
// removed best effort after the row is saved.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.UserProfile, error) {
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated := *user
	if in.Name != nil {
		updated.Name = *in.Name
	}
	if in.Bio != nil {
		updated.Bio = *in.Bio
	}

	var stored *StoredUpload
	if in.Avatar != nil {
		if stored, err = s.uploads.SaveAvatar(ctx, *in.Avatar); err != nil {
			return nil, err
		}
		updated.Avatar = stored.URL
	}
	updated.LastActive = clock()

	if err := s.userRepo.UpdateProfile(ctx, &updated); err != nil {
		s.uploads.Remove(ctx, stored)
		return nil, err
	}
	if stored != nil && user.Avatar != "" && user.Avatar != updated.Avatar {
		s.uploads.RemoveURL(ctx, user.Avatar)
	}
	return s.withStats(ctx, updated)
}

// TopContributors ranks users by points: posts x10, comments x5, votes received x2.
func (s *UserService) TopContributors(ctx context.Context) ([]models.Contributor, error) {
	return cache.Aside(ctx, s.cache, cache.TopContributorsKey, cache.TopContributorsTTL,
		func(ctx context.Context) ([]models.Contributor, error) {
			return s.userRepo.TopContributors(ctx, topContributorsLimit)
		})
}

// Follow makes actor follow username. Only a new follow notifies.
func (s *UserService) Follow(ctx context.Context, actor *models.User, username string) (*FollowState, error) {
	target, err := s.followTarget(ctx, actor, username)
	if err != nil {
		return nil, err
	}
	created, err := s.userRepo.Follow(ctx, actor.ID, target.ID)
	if err != nil {
		return nil, err
	}
	if created && s.notifier != nil {
		s.notifier.NotifyFollow(ctx, target.ID, actor)
	}
	return s.followState(ctx, target.ID, true)
}

func (s *UserService) Unfollow(ctx context.Context, actor *models.User, username string) (*FollowState, error) {
	target, err := s.followTarget(ctx, actor, username)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.Unfollow(ctx, actor.ID, target.ID); err != nil {
		return nil, err
	}
	return s.followState(ctx, target.ID, false)
}

func (s *UserService) followTarget(ctx context.Context, actor *models.User, username string) (*models.User, error) {
	if actor == nil {
		return nil, models.NewUnauthorizedError("Not authenticated")
	}
	target, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if target.ID == actor.ID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	return target, nil
}

func (s *UserService) followState(ctx context.Context, targetID uint, following bool) (*FollowState, error) {
	followers, err := s.userRepo.FollowerCount(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &FollowState{Following: following, Followers: followers}, nil
}

func (s *UserService) withStats(ctx context.Context, user models.User) (*models.UserProfile, error) {
	stats, err := s.userRepo.Stats(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.UserProfile{User: user, Stats: stats}, nil
}
