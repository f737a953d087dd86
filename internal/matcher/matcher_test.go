package matcher

import "testing"

var ratingOptions = []string{"Excellent", "Good", "Fair", "Poor", "Very Poor"}

func TestMatchSubstringCaseInsensitive(t *testing.T) {
	got, ok := Match("i think it's pretty poor", ratingOptions)
	if !ok || got != "Poor" {
		t.Fatalf("Match() = %q, %v; want %q, true", got, ok, "Poor")
	}

	got, ok = Match("MAJOR DISRUPTION for sure", []string{"No Impact", "Major Disruption"})
	if !ok || got != "Major Disruption" {
		t.Fatalf("Match() = %q, %v; want %q, true", got, ok, "Major Disruption")
	}
}

func TestMatchNoMatch(t *testing.T) {
	if got, ok := Match("asdfasdf", ratingOptions); ok {
		t.Fatalf("Match() = %q, want no match", got)
	}
	if got, ok := Match("   ", ratingOptions); ok {
		t.Fatalf("Match() on blank transcript = %q, want no match", got)
	}
}

func TestMatchTieBreakIsCatalogOrder(t *testing.T) {
	// "very poor" contains both "poor" and "very poor"; the earlier option wins.
	got, ok := Match("very poor", ratingOptions)
	if !ok || got != "Poor" {
		t.Fatalf("Match() = %q, %v; want %q, true", got, ok, "Poor")
	}

	// Transcript order does not matter, only option order.
	got, ok = Match("cracks and potholes", []string{"Potholes", "Cracks"})
	if !ok || got != "Potholes" {
		t.Fatalf("Match() = %q, %v; want %q, true", got, ok, "Potholes")
	}
}

func TestMatchRatingKeywordInsideLongerOption(t *testing.T) {
	options := []string{"Potholes", "Cracks", "Uneven Surface", "Poor Drainage", "Missing Signage"}
	got, ok := Match("it's just poor", options)
	if !ok || got != "Poor Drainage" {
		t.Fatalf("Match() = %q, %v; want %q, true", got, ok, "Poor Drainage")
	}
}

func TestMatchKeywordMustAppearInOption(t *testing.T) {
	options := []string{"Never", "Rarely", "Sometimes", "Often", "Always"}
	if got, ok := Match("good question", options); ok {
		t.Fatalf("Match() = %q, want no match", got)
	}
}

func TestMatchVeryPoorResolvesThroughPoor(t *testing.T) {
	got, ok := Match("honestly very poor", []string{"Good", "Very Poor"})
	if !ok || got != "Very Poor" {
		t.Fatalf("Match() = %q, %v; want %q, true", got, ok, "Very Poor")
	}
	got, ok = Match("pretty poor", []string{"Excellent", "Very Poor"})
	if !ok || got != "Very Poor" {
		t.Fatalf("Match() = %q, %v; want %q, true", got, ok, "Very Poor")
	}
	for _, kw := range ratingKeywords {
		if kw == "very poor" {
			t.Fatalf("ratingKeywords lists %q, which \"poor\" already covers", kw)
		}
	}
}
