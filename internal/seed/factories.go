// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"blogshive/internal/models"
	"blogshive/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options tune how the factory generates and persists entities.
type Options struct {
	// RandSeed fixes the faker seed; zero picks a time-based seed.
	RandSeed int64
	// DryRun assigns synthetic IDs instead of writing to the database.
	DryRun bool
	// FastHash hashes the shared password at bcrypt.MinCost.
	FastHash  bool
	BatchSize int
	// MaxDays bounds how far back generated timestamps reach.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	now   time.Time
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	if opts.RandSeed == 0 {
		opts.RandSeed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(opts.RandSeed),
		now:    time.Now().UTC(),
		nextID: 1000,
	}
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return f.faker.Float64Range(0, 1) < p
}

// Intn returns a value in [0,n).
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

// pastTime returns a timestamp up to MaxDays before now, never earlier than after.
func (f *Factory) pastTime(after time.Time) time.Time {
	oldest := f.now.Add(-time.Duration(f.opts.MaxDays) * 24 * time.Hour)
	if after.After(oldest) {
		oldest = after
	}
	if !oldest.Before(f.now) {
		return f.now
	}
	return f.faker.DateRange(oldest, f.now).UTC()
}

// HashPassword bcrypt-hashes the shared seed password once per run.
func (f *Factory) HashPassword(password string) (string, error) {
	cost := bcrypt.DefaultCost
	if f.opts.FastHash {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	return string(hashed), nil
}

// BuildUser constructs a user without persisting it. The index keeps
// usernames and emails unique within a run.
func (f *Factory) BuildUser(index int, passwordHash string, topics []string) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, index))
	username = strings.Map(func(r rune) rune {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, username)
	if len(username) > 30 {
		username = fmt.Sprintf("%s%d", username[:24], index)
	}

	created := f.pastTime(time.Time{})
	return &models.User{
		Username:       username,
		Email:          username + "@example.com",
		Password:       passwordHash,
		Name:           first + " " + last,
		Bio:            f.faker.Sentence(12),
		Avatar:         fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		FollowedTopics: f.pickTopics(topics, 3),
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

// CreateUser builds and persists a user. Optional overrides run before saving.
func (f *Factory) CreateUser(index int, passwordHash string, topics []string, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(index, passwordHash, topics)
	for _, override := range overrides {
		override(user)
	}
	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (f *Factory) pickTopics(topics []string, max int) []string {
	if len(topics) == 0 {
		return []string{}
	}
	n := 1 + f.Intn(max)
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		t := topics[f.Intn(len(topics))]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// BuildBlocks produces a structured article body: a heading, prose with
// inline markups, and an optional code sample, quote or list.
func (f *Factory) BuildBlocks() []models.Block {
	blocks := []models.Block{
		{Type: models.BlockParagraph, Text: f.faker.Paragraph(1, 4, 12, " ")},
		{Type: models.BlockHeading, Level: 2, Text: f.faker.HipsterSentence(4)},
	}

	paragraphs := 2 + f.Intn(4)
	for i := 0; i < paragraphs; i++ {
		text := f.faker.Paragraph(1, 3+f.Intn(4), 14, " ")
		blocks = append(blocks, models.Block{
			Type:    models.BlockParagraph,
			Text:    text,
			Markups: f.leadMarkup(text),
		})
	}

	switch f.Intn(4) {
	case 0:
		blocks = append(blocks, models.Block{
			Type:     models.BlockCode,
			Language: strings.ToLower(f.faker.ProgrammingLanguage()),
			Text:     fmt.Sprintf("// %s\nfmt.Println(%q)", f.faker.HackerPhrase(), f.faker.Word()),
		})
	case 1:
		blocks = append(blocks, models.Block{Type: models.BlockQuote, Text: f.faker.Quote()})
	case 2:
		items := make([]string, 2+f.Intn(3))
		for i := range items {
			items[i] = f.faker.HackerPhrase()
		}
		blocks = append(blocks, models.Block{Type: models.BlockList, Items: items, Ordered: f.faker.Bool()})
	default:
		blocks = append(blocks, models.Block{Type: models.BlockDivider})
	}
	return blocks
}

// leadMarkup bolds the first word of text.
func (f *Factory) leadMarkup(text string) []models.Markup {
	first, _, _ := strings.Cut(text, " ")
	n := utf8.RuneCountInString(first)
	if n == 0 || !f.faker.Bool() {
		return nil
	}
	return []models.Markup{{Type: models.MarkupBold, Start: 0, End: n}}
}

// BuildPost constructs a post for author without persisting it.
func (f *Factory) BuildPost(author *models.User, preset Preset) *models.Post {
	title := strings.TrimSuffix(f.faker.HipsterSentence(3+f.Intn(5)), ".")
	blocks := f.BuildBlocks()
	created := f.pastTime(author.CreatedAt)

	post := &models.Post{
		AuthorID:           author.ID,
		Title:              title,
		Subtitle:           f.faker.Sentence(10),
		Slug:               fmt.Sprintf("%s-%s", service.Slugify(title), f.faker.UUID()[:8]),
		Content:            blocks,
		Tags:               f.pickTopics(preset.Topics, 4),
		CoverImage:         fmt.Sprintf("https://picsum.photos/seed/%s/1200/630", f.faker.UUID()),
		Visibility:         f.pickVisibility(preset.Visibility),
		ReadingTimeMinutes: models.ReadingTime(blocks),
		CreatedAt:          created,
		UpdatedAt:          created,
	}
	if !f.Chance(preset.DraftRatio) {
		published := created
		post.Published = true
		post.PublishedAt = &published
	}
	return post
}

func (f *Factory) pickVisibility(weights map[models.Visibility]float64) models.Visibility {
	order := []models.Visibility{
		models.VisibilityPublic, models.VisibilityMembersOnly,
		models.VisibilityUnlisted, models.VisibilityPrivate,
	}
	total := 0.0
	for _, v := range order {
		total += weights[v]
	}
	if total <= 0 {
		return models.VisibilityPublic
	}
	roll := f.faker.Float64Range(0, total)
	for _, v := range order {
		roll -= weights[v]
		if roll < 0 {
			return v
		}
	}
	return models.VisibilityPublic
}

// CreatePostsBatch persists multiple posts in batches.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	if len(posts) == 0 {
		return nil
	}
	return f.db.CreateInBatches(posts, f.opts.BatchSize).Error
}

// BuildComment constructs a response by author on post, optionally
// replying to parent.
func (f *Factory) BuildComment(author *models.User, post *models.Post, parent *models.Comment) *models.Comment {
	after := post.CreatedAt
	var parentID *uint
	if parent != nil {
		after = parent.CreatedAt
		id := parent.ID
		parentID = &id
	}
	created := f.pastTime(after)
	return &models.Comment{
		PostID:    post.ID,
		AuthorID:  author.ID,
		ParentID:  parentID,
		Content:   f.faker.Sentence(8 + f.Intn(16)),
		IsVisible: true,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// CreateComment persists a comment built by BuildComment.
func (f *Factory) CreateComment(author *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	comment := f.BuildComment(author, post, parent)
	if f.opts.DryRun {
		f.nextID++
		comment.ID = f.nextID
		return comment, nil
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// BuildClap constructs a clap row of 1..MaxClapsPerUser from user on post.
func (f *Factory) BuildClap(user *models.User, post *models.Post) *models.Clap {
	created := f.pastTime(post.CreatedAt)
	return &models.Clap{
		UserID:    user.ID,
		PostID:    post.ID,
		Count:     1 + f.Intn(models.MaxClapsPerUser),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// BuildRelationship constructs a directed edge.
func (f *Factory) BuildRelationship(from, to *models.User, status models.RelationshipStatus) *models.Relationship {
	after := from.CreatedAt
	if to.CreatedAt.After(after) {
		after = to.CreatedAt
	}
	created := f.pastTime(after)
	return &models.Relationship{
		FollowerID:  from.ID,
		FollowingID: to.ID,
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// BuildNotification constructs a stored notification from sender to recipient.
func (f *Factory) BuildNotification(recipient, sender *models.User, kind models.NotificationType, post *models.Post, message string, at time.Time) *models.Notification {
	n := &models.Notification{
		RecipientID: recipient.ID,
		Type:        kind,
		Message:     message,
		Metadata:    map[string]any{},
		IsRead:      f.Chance(0.4),
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if sender != nil {
		id := sender.ID
		n.SenderID = &id
	}
	if post != nil {
		id := post.ID
		n.PostID = &id
	}
	return n
}

// createBatch persists rows in batches, or only logs in DryRun mode.
func createBatch[T any](f *Factory, rows []*T, label string) error {
	if len(rows) == 0 {
		return nil
	}
	if f.opts.DryRun {
		log.Printf("[dry-run] %s: %d rows (no DB write)", label, len(rows))
		return nil
	}
	if err := f.db.CreateInBatches(rows, f.opts.BatchSize).Error; err != nil {
		return fmt.Errorf("create %s: %w", label, err)
	}
	return nil
}
