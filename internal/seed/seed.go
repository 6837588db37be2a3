package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"blogshive/internal/database"
	"blogshive/internal/models"

	"gorm.io/gorm"
)

// Summary counts what a seeding run wrote.
type Summary struct {
	Users         int
	Relationships int
	Posts         int
	Comments      int
	Claps         int
	SavedPosts    int
	Notifications int
}

func (s Summary) String() string {
	return fmt.Sprintf("users=%d relationships=%d posts=%d comments=%d claps=%d saved=%d notifications=%d",
		s.Users, s.Relationships, s.Posts, s.Comments, s.Claps, s.SavedPosts, s.Notifications)
}

// Seeder populates a database according to a Preset.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	f := NewFactory(db, opts)
	return &Seeder{db: db, factory: f, opts: f.opts}
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory { return s.factory }

// Run seeds users, the follow graph, posts and their engagement.
func (s *Seeder) Run(preset Preset) (*Summary, error) {
	preset = preset.withDefaults()
	if err := preset.Validate(); err != nil {
		return nil, err
	}
	log.Printf("🌱 Seeding preset %q: %d users, %d posts each", preset.Name, preset.Users, preset.PostsPerUser)

	if preset.Clean && !s.opts.DryRun {
		if err := s.ClearAll(); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	summary := &Summary{}

	users, err := s.SeedUsers(preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	summary.Users = len(users)
	log.Printf("✓ %d users created", len(users))

	edges, follows, err := s.SeedRelationships(users, preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create relationships: %w", err)
	}
	summary.Relationships = edges
	log.Printf("✓ %d relationships created", edges)

	posts, err := s.SeedPosts(users, preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	summary.Posts = len(posts)
	log.Printf("✓ %d posts created", len(posts))

	if err := s.SeedEngagement(users, posts, follows, preset, summary); err != nil {
		return nil, fmt.Errorf("failed to create engagement: %w", err)
	}

	log.Printf("🎉 Database seeding completed: %s", summary)
	return summary, nil
}

// SeedUsers creates preset.Users accounts sharing the preset password.
func (s *Seeder) SeedUsers(preset Preset) ([]*models.User, error) {
	hash, err := s.factory.HashPassword(preset.Password)
	if err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, preset.Users)
	for i := 0; i < preset.Users; i++ {
		u, err := s.factory.CreateUser(i+1, hash, preset.Topics, func(u *models.User) {
			u.IsMember = s.factory.Chance(preset.MemberRatio)
		})
		if err != nil {
			return nil, err
		}
		users = append(users, u)
		if (i+1)%100 == 0 {
			log.Printf("Created %d users...", i+1)
		}
	}
	return users, nil
}

// Follow is a seeded follow edge, kept to derive follow notifications.
type Follow struct {
	From, To *models.User
	At       time.Time
}

// SeedRelationships lays out a random follow graph with a sprinkling of
// blocks. A pair carries at most one edge per direction.
func (s *Seeder) SeedRelationships(users []*models.User, preset Preset) (int, []Follow, error) {
	var rows []*models.Relationship
	var follows []Follow
	for _, from := range users {
		for _, to := range users {
			if from.ID == to.ID {
				continue
			}
			switch {
			case s.factory.Chance(preset.BlockRatio):
				rows = append(rows, s.factory.BuildRelationship(from, to, models.RelationshipBlocked))
			case s.factory.Chance(preset.FollowRatio):
				rel := s.factory.BuildRelationship(from, to, models.RelationshipFollowing)
				rows = append(rows, rel)
				follows = append(follows, Follow{From: from, To: to, At: rel.CreatedAt})
			}
		}
	}
	if err := createBatch(s.factory, rows, "relationships"); err != nil {
		return 0, nil, err
	}
	return len(rows), follows, nil
}

// SeedPosts writes preset.PostsPerUser posts for every user.
func (s *Seeder) SeedPosts(users []*models.User, preset Preset) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, len(users)*preset.PostsPerUser)
	for _, u := range users {
		for i := 0; i < preset.PostsPerUser; i++ {
			posts = append(posts, s.factory.BuildPost(u, preset))
		}
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// SeedEngagement adds responses, claps, saves and the notifications they
// would have produced, then reconciles the post counters.
func (s *Seeder) SeedEngagement(users []*models.User, posts []*models.Post, follows []Follow, preset Preset, summary *Summary) error {
	f := s.factory
	byID := make(map[uint]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var notes []*models.Notification
	for _, e := range follows {
		notes = append(notes, f.BuildNotification(e.To, e.From, models.NotificationFollow, nil,
			fmt.Sprintf("%s started following you", e.From.DisplayName()), e.At))
	}

	var claps []*models.Clap
	var saved []*models.SavedPost
	for _, post := range posts {
		if !post.Published {
			continue
		}
		author := byID[post.AuthorID]

		var thread []*models.Comment
		for i := 0; i < preset.CommentsPerPost; i++ {
			commenter := users[f.Intn(len(users))]
			var parent *models.Comment
			if len(thread) > 0 && f.Chance(preset.ReplyRatio) {
				parent = thread[f.Intn(len(thread))]
			}
			c, err := f.CreateComment(commenter, post, parent)
			if err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			thread = append(thread, c)
			post.ResponseCount++

			switch {
			case parent != nil && parent.AuthorID != commenter.ID:
				notes = append(notes, f.BuildNotification(byID[parent.AuthorID], commenter, models.NotificationReply, post,
					fmt.Sprintf("%s replied to your response", commenter.DisplayName()), c.CreatedAt))
			case parent == nil && post.AuthorID != commenter.ID:
				notes = append(notes, f.BuildNotification(author, commenter, models.NotificationComment, post,
					fmt.Sprintf("%s responded to %q", commenter.DisplayName(), post.Title), c.CreatedAt))
			}
		}
		summary.Comments += len(thread)

		for _, u := range users {
			if u.ID == post.AuthorID {
				continue
			}
			if f.Chance(preset.ClapRatio) {
				clap := f.BuildClap(u, post)
				claps = append(claps, clap)
				post.ClapCount += int64(clap.Count)
				notes = append(notes, f.BuildNotification(author, u, models.NotificationLike, post,
					fmt.Sprintf("%s applauded %q", u.DisplayName(), post.Title), clap.CreatedAt))
			}
			if f.Chance(preset.SaveRatio) {
				saved = append(saved, &models.SavedPost{UserID: u.ID, PostID: post.ID, CreatedAt: f.pastTime(post.CreatedAt)})
			}
		}
	}

	if err := createBatch(f, claps, "claps"); err != nil {
		return err
	}
	if err := createBatch(f, saved, "saved posts"); err != nil {
		return err
	}
	if err := createBatch(f, notes, "notifications"); err != nil {
		return err
	}
	if err := s.syncCounters(posts); err != nil {
		return err
	}

	summary.Claps = len(claps)
	summary.SavedPosts = len(saved)
	summary.Notifications = len(notes)
	log.Printf("✓ %d responses, %d claps, %d notifications", summary.Comments, len(claps), len(notes))
	return nil
}

func (s *Seeder) syncCounters(posts []*models.Post) error {
	if s.opts.DryRun {
		return nil
	}
	for _, p := range posts {
		if p.ClapCount == 0 && p.ResponseCount == 0 {
			continue
		}
		if err := s.db.Model(&models.Post{}).Where("id = ?", p.ID).Updates(map[string]any{
			"clap_count":     p.ClapCount,
			"response_count": p.ResponseCount,
		}).Error; err != nil {
			return fmt.Errorf("update post counters: %w", err)
		}
	}
	return nil
}

// ClearAll removes every row from the schema-managed tables.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	tables := make([]string, 0, len(database.PersistentModels()))
	for _, m := range database.PersistentModels() {
		stmt := &gorm.Statement{DB: s.db}
		if err := stmt.Parse(m); err != nil {
			return fmt.Errorf("resolve table for %T: %w", m, err)
		}
		tables = append(tables, stmt.Schema.Table)
	}

	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	for i := len(tables) - 1; i >= 0; i-- {
		if err := s.db.Exec("DELETE FROM " + tables[i]).Error; err != nil {
			return fmt.Errorf("clear %s: %w", tables[i], err)
		}
	}
	return nil
}
