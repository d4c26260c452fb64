package models

import (
	"encoding/json"
	"time"
)

type Subscription struct {
	Plan string `json:"plan"`
}

type UsageCounters struct {
	ContentGenerated int       `json:"contentGenerated"`
	PostsScheduled   int       `json:"postsScheduled"`
	AICallsThisMonth int       `json:"aiCallsThisMonth"`
	LastResetDate    time.Time `json:"lastResetDate"`
}

type User struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Subscription Subscription  `json:"subscription"`
	Usage        UsageCounters `json:"usage"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type AgeRange struct {
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
}

type Demographics struct {
	AgeRange  AgeRange `json:"ageRange,omitempty"`
	Gender    string   `json:"gender,omitempty"`
	Location  []string `json:"location,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

type Psychographics struct {
	Values     []string `json:"values,omitempty"`
	Lifestyle  []string `json:"lifestyle,omitempty"`
	PainPoints []string `json:"painPoints,omitempty"`
}

type TargetAudience struct {
	Demographics   Demographics   `json:"demographics,omitempty"`
	Psychographics Psychographics `json:"psychographics,omitempty"`
}

type BrandVoice struct {
	Tone        string   `json:"tone"`
	Personality []string `json:"personality,omitempty"`
	DoNotUse    []string `json:"doNotUse,omitempty"`
	KeyMessages []string `json:"keyMessages,omitempty"`
}

type BrandColors struct {
	Primary   string   `json:"primary,omitempty"`
	Secondary string   `json:"secondary,omitempty"`
	Accent    []string `json:"accent,omitempty"`
}

type BrandFonts struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

type VisualIdentity struct {
	Logo   string      `json:"logo,omitempty"`
	Colors BrandColors `json:"colors,omitempty"`
	Fonts  BrandFonts  `json:"fonts,omitempty"`
}

// SocialAccount is one platform connection record inside Brand.SocialAccounts.
// Tokens are opaque; this backend never calls the platforms itself.
type SocialAccount struct {
	Connected    bool   `json:"connected"`
	Username     string `json:"username,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	PageID       string `json:"pageId,omitempty"`
	ChannelID    string `json:"channelId,omitempty"`
}

type CompetitorHandles struct {
	Instagram string `json:"instagram,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
}

type Competitor struct {
	Name          string            `json:"name"`
	Website       string            `json:"website,omitempty"`
	SocialHandles CompetitorHandles `json:"socialHandles,omitempty"`
	Strengths     []string          `json:"strengths,omitempty"`
	Weaknesses    []string          `json:"weaknesses,omitempty"`
}

type HashtagStrategy struct {
	Branded  []string `json:"branded,omitempty"`
	Industry []string `json:"industry,omitempty"`
	Trending []string `json:"trending,omitempty"`
}

type ContentGuidelines struct {
	PreferredContentTypes []string        `json:"preferredContentTypes,omitempty"`
	PostingFrequency      map[string]int  `json:"postingFrequency,omitempty"`
	HashtagStrategy       HashtagStrategy `json:"hashtagStrategy,omitempty"`
	ContentPillars        []string        `json:"contentPillars,omitempty"`
}

type Brand struct {
	ID                string                   `json:"id"`
	UserID            string                   `json:"userId"`
	Name              string                   `json:"name"`
	Industry          string                   `json:"industry"`
	Description       *string                  `json:"description,omitempty"`
	Website           *string                  `json:"website,omitempty"`
	TargetAudience    TargetAudience           `json:"targetAudience"`
	BrandVoice        BrandVoice               `json:"brandVoice"`
	VisualIdentity    VisualIdentity           `json:"visualIdentity"`
	SocialAccounts    map[string]SocialAccount `json:"socialAccounts"`
	Competitors       []Competitor             `json:"competitors"`
	ContentGuidelines ContentGuidelines        `json:"contentGuidelines"`
	IsActive          bool                     `json:"isActive"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
}

type ContentBody struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
	Mentions []string `json:"mentions,omitempty"`
	CTA      string   `json:"cta,omitempty"`
}

type Engagement struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Saves    int64 `json:"saves"`
	Clicks   int64 `json:"clicks"`
}

type Performance struct {
	Impressions    int64      `json:"impressions"`
	Reach          int64      `json:"reach"`
	Engagement     Engagement `json:"engagement"`
	EngagementRate float64    `json:"engagementRate"`
	LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
}

// Recompute derives EngagementRate as a percentage of engagement actions over
// impressions. Clicks are counted separately (CTR concern) and excluded here.
// Must run before every persist of performance fields, not only on creation.
// Zero or negative impressions yield a zero rate.
func (p *Performance) Recompute() {
	if p.Impressions > 0 {
		total := p.Engagement.Likes + p.Engagement.Comments + p.Engagement.Shares + p.Engagement.Saves
		p.EngagementRate = float64(total) / float64(p.Impressions) * 100
		return
	}
	p.EngagementRate = 0
}

type Scheduling struct {
	Status       string     `json:"status"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	Timezone     string     `json:"timezone"`
}

type AIGenerated struct {
	IsAIGenerated bool    `json:"isAiGenerated"`
	Model         string  `json:"model,omitempty"`
	Prompt        string  `json:"prompt,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Iterations    int     `json:"iterations,omitempty"`
}

type Content struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	BrandID     string          `json:"brandId"`
	Title       string          `json:"title"`
	Type        string          `json:"type"`
	Platform    string          `json:"platform"`
	Body        ContentBody     `json:"content"`
	Media       json.RawMessage `json:"media,omitempty"`
	Scheduling  Scheduling      `json:"scheduling"`
	Performance Performance     `json:"performance"`
	AIGenerated AIGenerated     `json:"aiGenerated"`
	Tags        []string        `json:"tags,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	IsArchived  bool            `json:"isArchived"`

	// Populated on reads that join the parent brand for display.
	BrandName     *string `json:"brandName,omitempty"`
	BrandIndustry *string `json:"brandIndustry,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var ContentTypes = []string{"post", "story", "reel", "video", "article", "thread", "carousel"}

var Platforms = []string{"instagram", "linkedin", "twitter", "facebook", "youtube", "tiktok", "all"}

var SchedulingStatuses = []string{"draft", "scheduled", "published", "failed"}

func ValidContentType(t string) bool { return contains(ContentTypes, t) }

func ValidPlatform(p string) bool { return contains(Platforms, p) }

func ValidSchedulingStatus(s string) bool { return contains(SchedulingStatuses, s) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
