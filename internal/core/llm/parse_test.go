package llm

import (
	"errors"
	"testing"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json language tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
		{"opening fence only", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripCodeFences(tt.input)
			if got != tt.expected {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripCodeFences_Idempotent(t *testing.T) {
	once := StripCodeFences("```json\n{\"a\": 1}\n```")

	twice := StripCodeFences(once)
	if twice != once {
		t.Errorf("second strip changed output: %q -> %q", once, twice)
	}
}

const validEnrichmentJSON = `{
  "summary": "Power grid strain reported across the region.",
  "entities": [
    {"name": "GridCo", "type": "org", "role": "subject", "aliases": ["Grid Company"]}
  ],
  "claims": ["Demand hit a seasonal record."],
  "framing": "crisis framing",
  "sentiment": -0.4,
  "topic_tags": ["energy"]
}`

func TestParseEnrichment_Valid(t *testing.T) {
	result, err := ParseEnrichment(validEnrichmentJSON)
	if err != nil {
		t.Fatalf("ParseEnrichment() error = %v", err)
	}

	if result.Summary != "Power grid strain reported across the region." {
		t.Errorf("Summary = %q", result.Summary)
	}
	if result.Sentiment != -0.4 {
		t.Errorf("Sentiment = %v, want -0.4", result.Sentiment)
	}
	if len(result.Entities) != 1 || result.Entities[0].Type != domain.EntityOrg {
		t.Errorf("Entities = %+v", result.Entities)
	}
	if len(result.Entities[0].Aliases) != 1 || result.Entities[0].Aliases[0] != "Grid Company" {
		t.Errorf("Aliases = %v", result.Entities[0].Aliases)
	}
}

func TestParseEnrichment_Fenced(t *testing.T) {
	result, err := ParseEnrichment("```json\n" + validEnrichmentJSON + "\n```")
	if err != nil {
		t.Fatalf("ParseEnrichment() error = %v", err)
	}
	if result.Framing != "crisis framing" {
		t.Errorf("Framing = %q", result.Framing)
	}
}

func TestParseEnrichment_InvalidJSON(t *testing.T) {
	_, err := ParseEnrichment("not json at all")
	if !errors.Is(err, ErrParseFailed) {
		t.Errorf("error = %v, want ErrParseFailed", err)
	}
}

func TestParseEnrichment_MissingRequiredField(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no summary", `{"framing": "f", "sentiment": 0.0}`},
		{"no framing", `{"summary": "s", "sentiment": 0.0}`},
		{"no sentiment", `{"summary": "s", "framing": "f"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEnrichment(tt.input); !errors.Is(err, ErrParseFailed) {
				t.Errorf("error = %v, want ErrParseFailed", err)
			}
		})
	}
}

func TestParseEnrichment_MissingListsDefaultEmpty(t *testing.T) {
	result, err := ParseEnrichment(`{"summary": "s", "framing": "f", "sentiment": 0.1}`)
	if err != nil {
		t.Fatalf("ParseEnrichment() error = %v", err)
	}

	if result.Entities == nil || len(result.Entities) != 0 {
		t.Errorf("Entities = %v, want empty non-nil", result.Entities)
	}
	if result.Claims == nil || len(result.Claims) != 0 {
		t.Errorf("Claims = %v, want empty non-nil", result.Claims)
	}
	if result.TopicTags == nil || len(result.TopicTags) != 0 {
		t.Errorf("TopicTags = %v, want empty non-nil", result.TopicTags)
	}
}

func TestParseEnrichment_DropsUnknownEntityKeepsSiblings(t *testing.T) {
	input := `{
	  "summary": "s", "framing": "f", "sentiment": 0.0,
	  "entities": [
	    {"name": "Alpha", "type": "robot", "role": "subject"},
	    {"name": "Beta", "type": "person", "role": "pilot"},
	    {"name": "Gamma", "type": "place", "role": "location"},
	    {"name": "", "type": "person", "role": "subject"}
	  ]
	}`

	result, err := ParseEnrichment(input)
	if err != nil {
		t.Fatalf("ParseEnrichment() error = %v", err)
	}

	if len(result.Entities) != 1 {
		t.Fatalf("len(Entities) = %d, want 1", len(result.Entities))
	}
	if result.Entities[0].Name != "Gamma" {
		t.Errorf("surviving entity = %q, want Gamma", result.Entities[0].Name)
	}
}

func TestParseEnrichment_EntityDefaults(t *testing.T) {
	input := `{
	  "summary": "s", "framing": "f", "sentiment": 0.0,
	  "entities": [{"name": "Delta"}]
	}`

	result, err := ParseEnrichment(input)
	if err != nil {
		t.Fatalf("ParseEnrichment() error = %v", err)
	}

	if len(result.Entities) != 1 {
		t.Fatalf("len(Entities) = %d, want 1", len(result.Entities))
	}

	e := result.Entities[0]
	if e.Type != domain.EntityPerson || e.Role != domain.RoleMentioned {
		t.Errorf("defaults = %v/%v, want person/mentioned", e.Type, e.Role)
	}
	if e.Aliases == nil {
		t.Error("Aliases = nil, want empty slice")
	}
}

func TestParseEnrichment_ClampsSentiment(t *testing.T) {
	result, err := ParseEnrichment(`{"summary": "s", "framing": "f", "sentiment": 7.5}`)
	if err != nil {
		t.Fatalf("ParseEnrichment() error = %v", err)
	}
	if result.Sentiment != 1.0 {
		t.Errorf("Sentiment = %v, want 1.0", result.Sentiment)
	}

	result, err = ParseEnrichment(`{"summary": "s", "framing": "f", "sentiment": -7.5}`)
	if err != nil {
		t.Fatalf("ParseEnrichment() error = %v", err)
	}
	if result.Sentiment != -1.0 {
		t.Errorf("Sentiment = %v, want -1.0", result.Sentiment)
	}
}
