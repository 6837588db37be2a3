package seed

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"blogshive/internal/models"

	"gopkg.in/yaml.v3"
)

// Preset describes the shape of a seeded dataset. Presets are either
// built in (see Presets) or read from a YAML file.
type Preset struct {
	Name            string                        `yaml:"name"`
	Users           int                           `yaml:"users"`
	PostsPerUser    int                           `yaml:"posts_per_user"`
	CommentsPerPost int                           `yaml:"comments_per_post"`
	ReplyRatio      float64                       `yaml:"reply_ratio"`
	FollowRatio     float64                       `yaml:"follow_ratio"`
	BlockRatio      float64                       `yaml:"block_ratio"`
	ClapRatio       float64                       `yaml:"clap_ratio"`
	SaveRatio       float64                       `yaml:"save_ratio"`
	DraftRatio      float64                       `yaml:"draft_ratio"`
	MemberRatio     float64                       `yaml:"member_ratio"`
	Visibility      map[models.Visibility]float64 `yaml:"visibility"`
	Topics          []string                      `yaml:"topics"`
	Password        string                        `yaml:"password"`
	Clean           bool                          `yaml:"clean"`
}

// DefaultPassword is the login password of every seeded account unless a
// preset overrides it.
const DefaultPassword = "Blogshive-Demo-2024!"

var defaultTopics = []string{
	"go", "databases", "distributed-systems", "design", "writing",
	"productivity", "security", "frontend", "devops", "career",
}

// Presets are the built-in dataset shapes, addressable by name.
var Presets = map[string]Preset{
	"small": {
		Name:            "small",
		Users:           8,
		PostsPerUser:    2,
		CommentsPerPost: 2,
		ReplyRatio:      0.3,
		FollowRatio:     0.3,
		BlockRatio:      0.02,
		ClapRatio:       0.4,
		SaveRatio:       0.1,
		DraftRatio:      0.1,
		MemberRatio:     0.25,
	},
	"demo": {
		Name:            "demo",
		Users:           40,
		PostsPerUser:    4,
		CommentsPerPost: 4,
		ReplyRatio:      0.35,
		FollowRatio:     0.15,
		BlockRatio:      0.01,
		ClapRatio:       0.2,
		SaveRatio:       0.05,
		DraftRatio:      0.1,
		MemberRatio:     0.2,
		Clean:           true,
	},
	"large": {
		Name:            "large",
		Users:           400,
		PostsPerUser:    6,
		CommentsPerPost: 6,
		ReplyRatio:      0.4,
		FollowRatio:     0.03,
		BlockRatio:      0.002,
		ClapRatio:       0.03,
		SaveRatio:       0.01,
		DraftRatio:      0.08,
		MemberRatio:     0.15,
		Clean:           true,
	},
}

// PresetNames lists the built-in preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolvePreset returns the built-in preset called ref, or loads ref as a
// YAML file when it names an existing path.
func ResolvePreset(ref string) (Preset, error) {
	if p, ok := Presets[strings.ToLower(strings.TrimSpace(ref))]; ok {
		return p.withDefaults(), nil
	}
	if _, err := os.Stat(ref); err == nil {
		return LoadPreset(ref)
	}
	return Preset{}, fmt.Errorf("unknown preset %q (built-in: %s)", ref, strings.Join(PresetNames(), ", "))
}

// LoadPreset reads a YAML preset file.
func LoadPreset(path string) (Preset, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, err
	}
	p, err := ParsePreset(raw)
	if err != nil {
		return Preset{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParsePreset decodes a YAML preset. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func ParsePreset(raw []byte) (Preset, error) {
	var p Preset
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Preset{}, fmt.Errorf("decode preset: %w", err)
	}
	p = p.withDefaults()
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// Validate checks counts are non-negative and ratios lie in [0,1].
func (p Preset) Validate() error {
	if p.Users < 2 {
		return fmt.Errorf("users must be at least 2, got %d", p.Users)
	}
	if p.PostsPerUser < 0 || p.CommentsPerPost < 0 {
		return fmt.Errorf("post and comment counts must not be negative")
	}
	ratios := map[string]float64{
		"reply_ratio":  p.ReplyRatio,
		"follow_ratio": p.FollowRatio,
		"block_ratio":  p.BlockRatio,
		"clap_ratio":   p.ClapRatio,
		"save_ratio":   p.SaveRatio,
		"draft_ratio":  p.DraftRatio,
		"member_ratio": p.MemberRatio,
	}
	for name, r := range ratios {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, r)
		}
	}
	for v, w := range p.Visibility {
		if !v.Valid() {
			return fmt.Errorf("unknown visibility %q", v)
		}
		if w < 0 {
			return fmt.Errorf("visibility weight for %s must not be negative", v)
		}
	}
	return nil
}

func (p Preset) withDefaults() Preset {
	if p.Name == "" {
		p.Name = "custom"
	}
	if len(p.Topics) == 0 {
		p.Topics = defaultTopics
	}
	if len(p.Visibility) == 0 {
		p.Visibility = map[models.Visibility]float64{
			models.VisibilityPublic:      0.8,
			models.VisibilityMembersOnly: 0.1,
			models.VisibilityUnlisted:    0.06,
			models.VisibilityPrivate:     0.04,
		}
	}
	if p.Password == "" {
		p.Password = DefaultPassword
	}
	return p
}
