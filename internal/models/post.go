package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Visibility controls who may read a published post.
type Visibility string

const (
	VisibilityPublic      Visibility = "public"
	VisibilityUnlisted    Visibility = "unlisted"
	VisibilityMembersOnly Visibility = "members_only"
	VisibilityPrivate     Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityMembersOnly, VisibilityPrivate:
		return true
	}
	return false
}

// BlockType is the kind of a content block.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockImage     BlockType = "image"
	BlockVideo     BlockType = "video"
	BlockCode      BlockType = "code"
	BlockList      BlockType = "list"
	BlockQuote     BlockType = "quote"
	BlockDivider   BlockType = "divider"
)

// MarkupType is an inline formatting span kind.
type MarkupType string

const (
	MarkupBold      MarkupType = "bold"
	MarkupItalic    MarkupType = "italic"
	MarkupCode      MarkupType = "code"
	MarkupLink      MarkupType = "link"
	MarkupHighlight MarkupType = "highlight"
)

// Markup is an inline span over a block's text, in rune offsets.
type Markup struct {
	Type  MarkupType `json:"type"`
	Start int        `json:"start"`
	End   int        `json:"end"`
	Href  string     `json:"href,omitempty"`
}

// Block is one element of a post body.
type Block struct {
	Type     BlockType `json:"type"`
	Text     string    `json:"text,omitempty"`
	Level    int       `json:"level,omitempty"`
	URL      string    `json:"url,omitempty"`
	Caption  string    `json:"caption,omitempty"`
	Language string    `json:"language,omitempty"`
	Items    []string  `json:"items,omitempty"`
	Ordered  bool      `json:"ordered,omitempty"`
	Markups  []Markup  `json:"markups,omitempty"`
}

// Validate checks the block's shape for its type.
func (b Block) Validate() error {
	switch b.Type {
	case BlockParagraph, BlockQuote, BlockCode:
	case BlockHeading:
		if b.Level < 1 || b.Level > 6 {
			return fmt.Errorf("heading level must be between 1 and 6")
		}
	case BlockImage, BlockVideo:
		if strings.TrimSpace(b.URL) == "" {
			return fmt.Errorf("%s block requires a url", b.Type)
		}
	case BlockList:
		if len(b.Items) == 0 {
			return fmt.Errorf("list block requires at least one item")
		}
	case BlockDivider:
		return nil
	default:
		return fmt.Errorf("unknown block type %q", b.Type)
	}

	n := utf8.RuneCountInString(b.Text)
	for _, m := range b.Markups {
		switch m.Type {
		case MarkupBold, MarkupItalic, MarkupCode, MarkupHighlight:
		case MarkupLink:
			if m.Href == "" {
				return fmt.Errorf("link markup requires href")
			}
		default:
			return fmt.Errorf("unknown markup type %q", m.Type)
		}
		if m.Start < 0 || m.Start >= m.End || m.End > n {
			return fmt.Errorf("markup range [%d,%d) outside text of length %d", m.Start, m.End, n)
		}
	}
	return nil
}

// Post is an article. Drafts have Published=false.
type Post struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	AuthorID           uint       `gorm:"not null;index" json:"author_id"`
	Author             *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title              string     `gorm:"size:200;not null" json:"title"`
	Subtitle           string     `gorm:"size:300" json:"subtitle"`
	Slug               string     `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Content            []Block    `gorm:"type:text;serializer:json" json:"content"`
	Tags               []string   `gorm:"type:text;serializer:json" json:"tags"`
	CoverImage         string     `json:"cover_image"`
	Published          bool       `gorm:"default:false;index" json:"published"`
	PublishedAt        *time.Time `gorm:"index" json:"published_at"`
	Visibility         Visibility `gorm:"type:varchar(20);default:'public'" json:"visibility"`
	ClapCount          int64      `gorm:"default:0" json:"clap_count"`
	ResponseCount      int64      `gorm:"default:0" json:"response_count"`
	ReadingTimeMinutes int        `gorm:"default:1" json:"reading_time_minutes"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// Viewer-relative flags, filled in by the service.
	Saved   bool `gorm:"-" json:"saved,omitempty"`
	MyClaps int  `gorm:"-" json:"my_claps,omitempty"`
}

const wordsPerMinute = 200

// ReadingTime estimates minutes to read blocks, minimum 1.
func ReadingTime(blocks []Block) int {
	words := 0
	for _, b := range blocks {
		words += len(strings.Fields(b.Text))
		for _, item := range b.Items {
			words += len(strings.Fields(item))
		}
	}
	minutes := words / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// MaxClapsPerUser caps one user's claps on one post.
const MaxClapsPerUser = 50

// Clap is a user's accumulated claps on a post.
type Clap struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_clap_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_clap_user_post;index" json:"post_id"`
	Count     int       `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
