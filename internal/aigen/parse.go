package aigen

import (
	"regexp"
	"strings"
)

// ParsedCaption is the structured view of a free-text caption completion.
// FullResponse always carries the untouched model output so callers can fall
// back to it when the heuristic misreads the text.
type ParsedCaption struct {
	Caption      string   `json:"caption"`
	Hashtags     []string `json:"hashtags"`
	CTA          string   `json:"cta"`
	FullResponse string   `json:"fullResponse"`
}

var (
	hashtagPattern  = regexp.MustCompile(`#\w+`)
	ctaLongPattern  = regexp.MustCompile(`(?i)call to action:?`)
	ctaShortPattern = regexp.MustCompile(`(?i)cta:?`)
)

// stripFirst removes the first match of re from s, like a non-global
// regexp replace.
func stripFirst(s string, re *regexp.Regexp) string {
	if loc := re.FindStringIndex(s); loc != nil {
		return s[:loc[0]] + s[loc[1]:]
	}
	return s
}

// lineClass is the role a single response line plays in the parsed caption.
type lineClass int

const (
	lineHashtags lineClass = iota
	lineCTA
	lineCaptionStart
	lineCaptionAppend
	lineSkip
)

// classifyLine assigns a line to exactly one role. The branch order matters:
// any '#' claims the line for hashtags even if it also names a call to
// action, a later hashtag line overwrites an earlier one, and continuation
// lines only attach once a caption has started.
func classifyLine(line string, captionStarted bool) lineClass {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(line, "#"):
		return lineHashtags
	case strings.Contains(lower, "call to action") || strings.Contains(lower, "cta"):
		return lineCTA
	case !captionStarted && strings.TrimSpace(line) != "":
		return lineCaptionStart
	case captionStarted && !strings.Contains(line, "#") && !strings.Contains(lower, "cta"):
		return lineCaptionAppend
	default:
		return lineSkip
	}
}

// ParseCaption splits a raw completion into caption, hashtags and CTA by
// classifying each non-blank line. If no line qualifies as a caption the
// whole response is returned as the caption.
func ParseCaption(raw string) ParsedCaption {
	var (
		caption  string
		cta      string
		hashtags = []string{}
	)

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch classifyLine(line, caption != "") {
		case lineHashtags:
			if m := hashtagPattern.FindAllString(line, -1); m != nil {
				hashtags = m
			} else {
				hashtags = []string{}
			}
		case lineCTA:
			cta = strings.TrimSpace(stripFirst(stripFirst(line, ctaLongPattern), ctaShortPattern))
		case lineCaptionStart:
			caption = strings.TrimSpace(line)
		case lineCaptionAppend:
			caption += "\n" + strings.TrimSpace(line)
		}
	}

	if caption == "" {
		caption = raw
	}
	return ParsedCaption{
		Caption:      caption,
		Hashtags:     hashtags,
		CTA:          cta,
		FullResponse: raw,
	}
}
