// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"civicpulse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

var issueTemplates = map[models.PostCategory][]string{
	models.CategoryTraffic: {
		"Pothole on %s", "Broken traffic light at %s", "Faded zebra crossing near %s",
		"Cars speeding through %s", "Blocked cycle lane on %s",
	},
	models.CategoryEnvironment: {
		"Fallen tree in %s", "Smoke from burning waste near %s", "Dead fish in the pond at %s",
		"Construction dust around %s", "Graffiti on the walls of %s",
	},
	models.CategoryPublicSafety: {
		"Street lamp out on %s", "Exposed wiring near %s", "Broken playground swing in %s",
		"Open manhole at %s", "Loose railing at %s",
	},
	models.CategorySanitation: {
		"Overflowing bins at %s", "Illegal dumping behind %s", "Blocked drain on %s",
		"Sewage smell near %s", "Missed garbage pickup in %s",
	},
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	rng    *rand.Rand
	places []string
	taken  map[string]bool
	hash   string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. opts.RandSeed makes the output
// reproducible; zero seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	rng := rand.New(rand.NewSource(seed))
	return &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(seed),
		rng:    rng,
		places: []string{"Main Street", "the market square", "Elm Avenue", "the school gate"},
		taken:  make(map[string]bool),
		nextID: 1000,
	}
}

// UsePlaces replaces the place names issue titles are built from.
func (f *Factory) UsePlaces(places []string) {
	if len(places) > 0 {
		f.places = places
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	if f.opts.SkipBcrypt {
		f.hash = DefaultPassword
		return f.hash, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	f.hash = string(hashed)
	return f.hash, nil
}

// uniqueUsername derives a free username from a display name.
func (f *Factory) uniqueUsername(first, last string) string {
	base := strings.ToLower(first + last)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base)
	if len(base) > 24 {
		base = base[:24]
	}
	if base == "" {
		base = "citizen"
	}
	name := base
	for i := 1; f.taken[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	f.taken[name] = true
	return name
}

// BuildUser constructs a citizen without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := f.uniqueUsername(first, last)
	user := &models.User{
		Name:       first + " " + last,
		Username:   username,
		Email:      username + "@example.com",
		Password:   hash,
		Bio:        f.faker.Sentence(10),
		LastActive: f.pastTime(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUsers builds and persists count users in batches.
func (f *Factory) CreateUsers(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for range count {
		u, err := f.BuildUser()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := f.persist(&users, len(users)); err != nil {
		return nil, err
	}
	return users, nil
}

// BuildPost constructs an issue report by author with a realistic created_at
// spread over the last opts.MaxDays days.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	category := models.PostCategories[f.rng.Intn(len(models.PostCategories))]
	templates := issueTemplates[category]
	place := f.places[f.rng.Intn(len(f.places))]

	post := &models.Post{
		Title:       fmt.Sprintf(templates[f.rng.Intn(len(templates))], place),
		Description: f.faker.Paragraph(1, 3, 12, " "),
		Category:    category,
		UserID:      author.ID,
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID()),
		CreatedAt:   f.pastTime(),
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePosts spreads count posts across authors.
func (f *Factory) CreatePosts(authors []*models.User, count int) ([]*models.Post, error) {
	if len(authors) == 0 || count <= 0 {
		return nil, nil
	}
	posts := make([]*models.Post, 0, count)
	for range count {
		posts = append(posts, f.BuildPost(authors[f.rng.Intn(len(authors))]))
	}
	if err := f.persist(&posts, len(posts)); err != nil {
		return nil, err
	}
	return posts, nil
}

// Engagement is the set of reactions generated for a batch of posts.
type Engagement struct {
	Comments     []*models.Comment
	Votes        []*models.PostVote
	Likes        []*models.PostLike
	CommentLikes []*models.CommentLike
}

// BuildEngagement generates comments, votes and likes from users on posts.
// Each user votes and likes a post at most once.
func (f *Factory) BuildEngagement(users []*models.User, posts []*models.Post) *Engagement {
	e := &Engagement{}
	if len(users) == 0 {
		return e
	}
	for _, post := range posts {
		for _, idx := range f.sample(len(users), 0.4) {
			voter := users[idx]
			value := 1
			if f.rng.Float64() < 0.2 {
				value = -1
			}
			e.Votes = append(e.Votes, &models.PostVote{PostID: post.ID, UserID: voter.ID, Value: value})
		}
		for _, idx := range f.sample(len(users), 0.25) {
			e.Likes = append(e.Likes, &models.PostLike{PostID: post.ID, UserID: users[idx].ID})
		}
		for range f.rng.Intn(5) {
			author := users[f.rng.Intn(len(users))]
			created := post.CreatedAt.Add(time.Duration(f.rng.Intn(72)+1) * time.Hour)
			if created.After(time.Now()) {
				created = time.Now()
			}
			e.Comments = append(e.Comments, &models.Comment{
				PostID:    post.ID,
				UserID:    author.ID,
				Content:   f.faker.Sentence(f.rng.Intn(12) + 4),
				CreatedAt: created,
			})
		}
	}
	return e
}

// CreateEngagement persists BuildEngagement's output. Comment likes are added
// once comments have IDs.
func (f *Factory) CreateEngagement(users []*models.User, posts []*models.Post) (*Engagement, error) {
	e := f.BuildEngagement(users, posts)
	if err := f.persist(&e.Comments, len(e.Comments)); err != nil {
		return nil, fmt.Errorf("comments: %w", err)
	}
	if err := f.persist(&e.Votes, len(e.Votes)); err != nil {
		return nil, fmt.Errorf("votes: %w", err)
	}
	if err := f.persist(&e.Likes, len(e.Likes)); err != nil {
		return nil, fmt.Errorf("likes: %w", err)
	}

	for _, c := range e.Comments {
		for _, idx := range f.sample(len(users), 0.1) {
			e.CommentLikes = append(e.CommentLikes, &models.CommentLike{CommentID: c.ID, UserID: users[idx].ID})
		}
	}
	if err := f.persist(&e.CommentLikes, len(e.CommentLikes)); err != nil {
		return nil, fmt.Errorf("comment likes: %w", err)
	}
	return e, nil
}

// CreateFollows makes every user follow a few others, never themselves.
func (f *Factory) CreateFollows(users []*models.User, perUser int) ([]*models.UserFollow, error) {
	var follows []*models.UserFollow
	if len(users) < 2 {
		return follows, nil
	}
	for i, follower := range users {
		picked := 0
		for _, j := range f.rng.Perm(len(users)) {
			if picked == perUser {
				break
			}
			if j == i {
				continue
			}
			follows = append(follows, &models.UserFollow{FollowerID: follower.ID, FollowedID: users[j].ID})
			picked++
		}
	}
	if err := f.persist(&follows, len(follows)); err != nil {
		return nil, err
	}
	return follows, nil
}

// FollowTopics subscribes each user to a random subset of topics.
func (f *Factory) FollowTopics(users []*models.User, topics []models.Topic) error {
	if f.opts.DryRun || len(topics) == 0 {
		return nil
	}
	for _, u := range users {
		for _, idx := range f.sample(len(topics), 0.3) {
			if err := f.db.Model(&topics[idx]).Association("Followers").Append(u); err != nil {
				return fmt.Errorf("follow topic %q: %w", topics[idx].Name, err)
			}
		}
	}
	return nil
}

// sample returns the indexes in [0,n) kept with probability p, in random order.
func (f *Factory) sample(n int, p float64) []int {
	var out []int
	for _, idx := range f.rng.Perm(n) {
		if f.rng.Float64() < p {
			out = append(out, idx)
		}
	}
	return out
}

func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// persist batch-inserts rows, or assigns synthetic IDs in DryRun mode.
func (f *Factory) persist(rows any, n int) error {
	if n == 0 {
		return nil
	}
	if f.opts.DryRun {
		f.assignIDs(rows)
		log.Printf("[dry-run] %T: %d rows (no DB write)", rows, n)
		return nil
	}
	return f.db.CreateInBatches(rows, 200).Error
}

func (f *Factory) assignIDs(rows any) {
	next := func() uint {
		f.nextID++
		return f.nextID
	}
	switch rs := rows.(type) {
	case *[]*models.User:
		for _, r := range *rs {
			r.ID = next()
		}
	case *[]*models.Post:
		for _, r := range *rs {
			r.ID = next()
		}
	case *[]*models.Comment:
		for _, r := range *rs {
			r.ID = next()
		}
	case *[]*models.PostVote:
		for _, r := range *rs {
			r.ID = next()
		}
	case *[]*models.PostLike:
		for _, r := range *rs {
			r.ID = next()
		}
	case *[]*models.CommentLike:
		for _, r := range *rs {
			r.ID = next()
		}
	case *[]*models.UserFollow:
		for _, r := range *rs {
			r.ID = next()
		}
	}
}
