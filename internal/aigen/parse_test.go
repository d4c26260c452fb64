package aigen

import (
	"reflect"
	"testing"
)

func TestParseCaptionWellFormed(t *testing.T) {
	raw := "Fresh roast, straight to your door.\n\n#coffee #morningbrew #smallbatch\n\nCall to action: Order your first bag today"

	got := ParseCaption(raw)

	if got.Caption != "Fresh roast, straight to your door." {
		t.Fatalf("caption = %q", got.Caption)
	}
	want := []string{"#coffee", "#morningbrew", "#smallbatch"}
	if !reflect.DeepEqual(got.Hashtags, want) {
		t.Fatalf("hashtags = %v, want %v", got.Hashtags, want)
	}
	if got.CTA != "Order your first bag today" {
		t.Fatalf("cta = %q", got.CTA)
	}
	if got.FullResponse != raw {
		t.Fatalf("fullResponse was not preserved")
	}
}

func TestParseCaptionMultilineCaption(t *testing.T) {
	raw := "First line of the caption.\nSecond line keeps going.\n#tag"

	got := ParseCaption(raw)

	if got.Caption != "First line of the caption.\nSecond line keeps going." {
		t.Fatalf("caption = %q", got.Caption)
	}
}

func TestParseCaptionLaterHashtagLineWins(t *testing.T) {
	raw := "Caption here\n#first #second\n#only"

	got := ParseCaption(raw)

	if !reflect.DeepEqual(got.Hashtags, []string{"#only"}) {
		t.Fatalf("hashtags = %v, want the last hashtag line only", got.Hashtags)
	}
}

func TestParseCaptionHashClaimsCTALine(t *testing.T) {
	// A '#' anywhere wins over the CTA keyword on the same line.
	raw := "Caption here\nCTA: share with #friends"

	got := ParseCaption(raw)

	if got.CTA != "" {
		t.Fatalf("cta = %q, want empty", got.CTA)
	}
	if !reflect.DeepEqual(got.Hashtags, []string{"#friends"}) {
		t.Fatalf("hashtags = %v", got.Hashtags)
	}
}

func TestParseCaptionCTALabelVariants(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"Call to action: Shop now", "Shop now"},
		{"CALL TO ACTION Shop now", "Shop now"},
		{"CTA: Visit our store", "Visit our store"},
		{"cta Visit our store", "Visit our store"},
	}
	for _, tc := range cases {
		got := ParseCaption("Caption here\n" + tc.line)
		if got.CTA != tc.want {
			t.Fatalf("line %q: cta = %q, want %q", tc.line, got.CTA, tc.want)
		}
	}
}

func TestParseCaptionCTAKeywordInsideWord(t *testing.T) {
	// The keyword check is a plain substring match, so "octane" trips it
	// and the label strip removes the matched letters.
	got := ParseCaption("Caption here\nHigh-octane energy")

	if got.CTA != "High-one energy" {
		t.Fatalf("cta = %q", got.CTA)
	}
}

func TestParseCaptionContinuesAfterHashtags(t *testing.T) {
	raw := "Opening line\n#tag\nClosing line"

	got := ParseCaption(raw)

	if got.Caption != "Opening line\nClosing line" {
		t.Fatalf("caption = %q", got.Caption)
	}
}

func TestParseCaptionFallsBackToFullResponse(t *testing.T) {
	raw := "#just #hashtags"

	got := ParseCaption(raw)

	if got.Caption != raw {
		t.Fatalf("caption = %q, want the full response", got.Caption)
	}
	if !reflect.DeepEqual(got.Hashtags, []string{"#just", "#hashtags"}) {
		t.Fatalf("hashtags = %v", got.Hashtags)
	}
}

func TestParseCaptionEmptyInput(t *testing.T) {
	got := ParseCaption("")

	if got.Caption != "" {
		t.Fatalf("caption = %q", got.Caption)
	}
	if len(got.Hashtags) != 0 || got.Hashtags == nil {
		t.Fatalf("hashtags = %#v, want empty non-nil slice", got.Hashtags)
	}
}
