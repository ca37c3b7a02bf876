package extract

import (
	"testing"

	"engram/internal/domain"
)

func TestClassifyPreference(t *testing.T) {
	if got := Classify("I prefer dark mode over light mode"); got != domain.CategoryPreference {
		t.Fatalf("expected preference, got %s", got)
	}
}

func TestClassifyDecision(t *testing.T) {
	if got := Classify("we decided to use postgres for the new service"); got != domain.CategoryDecision {
		t.Fatalf("expected decision, got %s", got)
	}
}

func TestClassifyOutcome(t *testing.T) {
	if got := Classify("the outage turned out to be caused by a bad migration"); got != domain.CategoryOutcome {
		t.Fatalf("expected outcome, got %s", got)
	}
}

func TestClassifyPattern(t *testing.T) {
	if got := Classify("every time we deploy on Friday something breaks"); got != domain.CategoryPattern {
		t.Fatalf("expected pattern, got %s", got)
	}
}

func TestClassifyFallsBackToFact(t *testing.T) {
	if got := Classify("the server runs on port 8080"); got != domain.CategoryFact {
		t.Fatalf("expected fact, got %s", got)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// contains both preference and decision language; preference rule is
	// ordered first so it should win.
	got := Classify("I prefer that we decided to use postgres")
	if got != domain.CategoryPreference {
		t.Fatalf("expected first-match preference to win, got %s", got)
	}
}

func TestExtractEntityKnownToken(t *testing.T) {
	e := ExtractEntity("we migrated the database to postgres last week")
	if e == nil || *e != "postgres" {
		t.Fatalf("expected postgres, got %v", e)
	}
}

func TestExtractEntityPrefersHigherWeight(t *testing.T) {
	e := ExtractEntity("deployed the docker container behind postgres")
	if e == nil || *e != "postgres" {
		t.Fatalf("expected higher-weighted postgres over docker, got %v", e)
	}
}

func TestExtractEntityFallsBackToIdentifier(t *testing.T) {
	e := ExtractEntity("the userService handles all requests")
	if e == nil || *e != "userService" {
		t.Fatalf("expected camelCase identifier fallback, got %v", e)
	}
}

func TestExtractEntityNilWhenNoMatch(t *testing.T) {
	e := ExtractEntity("this is just plain text with nothing special")
	if e != nil {
		t.Fatalf("expected nil entity, got %v", *e)
	}
}

func TestExtractConfidenceAssertive(t *testing.T) {
	if got := ExtractConfidence("you must always run migrations before deploy"); got != domain.MaxConfidence {
		t.Fatalf("expected max confidence, got %f", got)
	}
}

func TestExtractConfidenceHedged(t *testing.T) {
	if got := ExtractConfidence("this might probably work but I'm not sure"); got != domain.MinConfidence {
		t.Fatalf("expected min confidence, got %f", got)
	}
}

func TestExtractConfidenceDefault(t *testing.T) {
	if got := ExtractConfidence("the service restarts nightly"); got != domain.DefaultConfidence {
		t.Fatalf("expected default confidence, got %f", got)
	}
}

func TestNormalizeTagsDedupesPreservingOrder(t *testing.T) {
	got := NormalizeTags([]string{" Go ", "go", "DATABASE", "database", "cli"})
	want := []string{"go", "database", "cli"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFillLeavesCallerSuppliedFieldsUntouched(t *testing.T) {
	entity := "custom-entity"
	in := Fields{Category: domain.CategoryOutcome, Entity: &entity, Confidence: 0.42}
	out := Fill("I prefer tabs over spaces", in)
	if out.Category != domain.CategoryOutcome {
		t.Fatalf("expected caller category preserved, got %s", out.Category)
	}
	if out.Entity == nil || *out.Entity != "custom-entity" {
		t.Fatalf("expected caller entity preserved, got %v", out.Entity)
	}
	if out.Confidence != 0.42 {
		t.Fatalf("expected caller confidence preserved, got %f", out.Confidence)
	}
}

func TestFillPopulatesMissingFields(t *testing.T) {
	out := Fill("I prefer tabs over spaces", Fields{})
	if out.Category != domain.CategoryPreference {
		t.Fatalf("expected classified preference, got %s", out.Category)
	}
	if out.Confidence != domain.DefaultConfidence {
		t.Fatalf("expected default confidence, got %f", out.Confidence)
	}
}
