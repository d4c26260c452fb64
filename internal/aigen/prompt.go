package aigen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PortNumber53/creator-ai/backend/internal/models"
)

// CaptionRequest carries the user-supplied knobs for a caption generation.
type CaptionRequest struct {
	BrandID        string `json:"brandId"`
	Platform       string `json:"platform"`
	ContentType    string `json:"contentType"`
	Topic          string `json:"topic"`
	Tone           string `json:"tone"`
	TargetAudience string `json:"targetAudience"`
}

type ImageConceptRequest struct {
	BrandID  string `json:"brandId"`
	Topic    string `json:"topic"`
	Style    string `json:"style"`
	Mood     string `json:"mood"`
	Platform string `json:"platform"`
}

type VideoScriptRequest struct {
	BrandID    string `json:"brandId"`
	Topic      string `json:"topic"`
	Duration   int    `json:"duration"`
	Platform   string `json:"platform"`
	ScriptType string `json:"scriptType"`
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func joined(vals []string, fallback string) string {
	if len(vals) == 0 {
		return fallback
	}
	return strings.Join(vals, ", ")
}

// CaptionSystemPrompt embeds the brand profile and the platform hashtag
// conventions into the instruction block for the content model.
func CaptionSystemPrompt(brand *models.Brand, req CaptionRequest) string {
	return fmt.Sprintf(`You are an expert social media content creator specializing in %s content.
Create engaging, platform-optimized content that drives engagement and conversions.

Brand Information:
- Name: %s
- Industry: %s
- Brand Voice: %s
- Target Audience: %s
- Key Messages: %s

Platform: %s
Content Type: %s
Topic: %s
Tone: %s

Requirements:
- Create a compelling caption that matches the brand voice
- Include relevant hashtags (5-10 for Instagram, 2-5 for LinkedIn, 1-3 for Twitter)
- Add a clear call-to-action
- Optimize for %s best practices
- Keep within platform character limits
- Make it engaging and shareable`,
		req.Platform,
		brand.Name,
		brand.Industry,
		brand.BrandVoice.Tone,
		orDefault(req.TargetAudience, "General audience"),
		joined(brand.BrandVoice.KeyMessages, "Not specified"),
		req.Platform,
		req.ContentType,
		req.Topic,
		req.Tone,
		req.Platform,
	)
}

func CaptionUserPrompt(req CaptionRequest) string {
	return fmt.Sprintf("Create a %s caption for %s about: %s", req.ContentType, req.Platform, req.Topic)
}

func ImageConceptSystemPrompt(brand *models.Brand, req ImageConceptRequest) string {
	return fmt.Sprintf(`You are a creative director specializing in visual content for social media.
Create detailed, actionable image concepts that align with brand identity and platform requirements.

Brand Information:
- Name: %s
- Industry: %s
- Primary Color: %s
- Brand Personality: %s

Platform: %s
Topic: %s
Style: %s
Mood: %s

Create a detailed image concept including:
1. Main visual elements
2. Color scheme
3. Composition and layout
4. Text overlay suggestions
5. Props or background elements
6. Lighting and mood
7. Platform-specific optimization tips`,
		brand.Name,
		brand.Industry,
		brand.VisualIdentity.Colors.Primary,
		joined(brand.BrandVoice.Personality, "Professional"),
		req.Platform,
		req.Topic,
		req.Style,
		req.Mood,
	)
}

func ImageConceptUserPrompt(req ImageConceptRequest) string {
	return "Create an image concept for: " + req.Topic
}

func VideoScriptSystemPrompt(brand *models.Brand, req VideoScriptRequest) string {
	return fmt.Sprintf(`You are a video script writer specializing in %s content.
Create engaging, platform-optimized video scripts that capture attention and drive action.

Brand Information:
- Name: %s
- Industry: %s
- Brand Voice: %s
- Key Messages: %s

Platform: %s
Duration: %d seconds
Script Type: %s
Topic: %s

Create a detailed script including:
1. Hook (first 3 seconds)
2. Main content structure
3. Visual cues and directions
4. Call-to-action
5. Text overlays
6. Music/sound suggestions
7. Platform-specific optimization tips`,
		req.Platform,
		brand.Name,
		brand.Industry,
		brand.BrandVoice.Tone,
		joined(brand.BrandVoice.KeyMessages, "Not specified"),
		req.Platform,
		req.Duration,
		req.ScriptType,
		req.Topic,
	)
}

func VideoScriptUserPrompt(req VideoScriptRequest) string {
	return fmt.Sprintf("Create a %d-second video script about: %s", req.Duration, req.Topic)
}

func AnalysisSystemPrompt() string {
	return `You are a social media analytics expert. Analyze the provided content performance data and provide actionable insights.

Analyze the following metrics and provide:
1. Performance summary
2. Top performing content types
3. Engagement patterns
4. Audience insights
5. Recommendations for improvement
6. Content strategy suggestions
7. Optimal posting times
8. Hashtag performance analysis

Be specific and actionable in your recommendations.`
}

func AnalysisUserPrompt(contentData json.RawMessage) string {
	return "Analyze this content performance data: " + string(contentData)
}
