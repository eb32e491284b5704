package seed

import (
	"context"
	"fmt"
	"log"

	"civicpulse/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// FollowsPerUser is how many other citizens each seeded user follows.
	FollowsPerUser int
	MaxDays        int
	SkipBcrypt     bool
	DryRun         bool
	RandSeed       int64
}

// Summary counts what a run created.
type Summary struct {
	CatalogEntries int
	Users          int
	Posts          int
	Comments       int
	Votes          int
	Likes          int
	Follows        int
}

// Seeder fills a database with demo civic activity.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder binds a seeder to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.FollowsPerUser <= 0 {
		opts.FollowsPerUser = 3
	}
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// clearOrder lists tables children first so foreign keys never block a delete.
var clearOrder = []string{
	"topic_followers",
	"notifications",
	"comment_likes",
	"comments",
	"post_likes",
	"post_votes",
	"posts",
	"user_follows",
	"topics",
	"locations",
	"users",
}

// ClearAll deletes every row of the application tables.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		log.Println("[dry-run] ClearAll skipped")
		return nil
	}
	log.Println("🗑️  Clearing existing data...")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range clearOrder {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Run seeds the catalog, then users, posts and their engagement.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", s.opts.NumUsers, s.opts.NumPosts)
	sum := &Summary{}

	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	var topics []models.Topic
	if !s.opts.DryRun {
		n, err := SeedCatalog(ctx, s.db)
		if err != nil {
			return nil, err
		}
		sum.CatalogEntries = n
		if err := s.usePlaces(ctx); err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Find(&topics).Error; err != nil {
			return nil, fmt.Errorf("load topics: %w", err)
		}
	}

	users, err := s.factory.CreateUsers(s.opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	sum.Users = len(users)
	log.Printf("✓ %d users created", len(users))

	follows, err := s.factory.CreateFollows(users, s.opts.FollowsPerUser)
	if err != nil {
		return nil, fmt.Errorf("failed to create follows: %w", err)
	}
	sum.Follows = len(follows)

	if err := s.factory.FollowTopics(users, topics); err != nil {
		return nil, err
	}

	posts, err := s.factory.CreatePosts(users, s.opts.NumPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	sum.Posts = len(posts)
	log.Printf("✓ %d posts created", len(posts))

	e, err := s.factory.CreateEngagement(users, posts)
	if err != nil {
		return nil, fmt.Errorf("failed to create engagement: %w", err)
	}
	sum.Comments = len(e.Comments)
	sum.Votes = len(e.Votes)
	sum.Likes = len(e.Likes)
	log.Printf("✓ %d comments, %d votes, %d likes", sum.Comments, sum.Votes, sum.Likes)

	log.Println("🎉 Database seeding completed successfully!")
	return sum, nil
}

// usePlaces makes issue titles refer to known locations.
func (s *Seeder) usePlaces(ctx context.Context) error {
	var names []string
	if err := s.db.WithContext(ctx).Model(&models.Location{}).Pluck("name", &names).Error; err != nil {
		return fmt.Errorf("load locations: %w", err)
	}
	s.factory.UsePlaces(names)
	return nil
}
