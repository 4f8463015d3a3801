package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/civilian24601/amon-hen/internal/core/domain"
)

// ErrParseFailed marks LLM output that could not be decoded into an
// enrichment result.
var ErrParseFailed = errors.New("enrichment output parse failed")

var fenceOpenRe = regexp.MustCompile("^```\\w*\n?")

// StripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, from LLM output. Applying it to already clean text is a
// no-op.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = fenceOpenRe.ReplaceAllString(text, "")
	}

	if strings.HasSuffix(text, "```") {
		text = text[:len(text)-3]
	}

	return strings.TrimSpace(text)
}

// rawEnrichment mirrors the JSON shape the prompt asks for. Pointer fields
// distinguish missing required keys from present zero values.
type rawEnrichment struct {
	Summary   *string     `json:"summary"`
	Entities  []rawEntity `json:"entities"`
	Claims    []string    `json:"claims"`
	Framing   *string     `json:"framing"`
	Sentiment *float64    `json:"sentiment"`
	TopicTags []string    `json:"topic_tags"`
}

type rawEntity struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Role    string   `json:"role"`
	Aliases []string `json:"aliases"`
}

// ParseEnrichment decodes LLM output into an EnrichmentResult. Code fences
// are tolerated. Missing summary, framing, or sentiment fails the parse;
// missing list fields default to empty. Entities with an unknown type or
// role are dropped individually, missing type or role falls back to the
// defaults, and sentiment is clamped into [-1, 1].
func ParseEnrichment(text string) (domain.EnrichmentResult, error) {
	cleaned := StripCodeFences(text)

	var raw rawEnrichment
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("%w: %s", ErrParseFailed, err)
	}

	if raw.Summary == nil || raw.Framing == nil || raw.Sentiment == nil {
		return domain.EnrichmentResult{}, fmt.Errorf("%w: missing required fields", ErrParseFailed)
	}

	entities := make([]domain.Entity, 0, len(raw.Entities))

	for _, e := range raw.Entities {
		if e.Name == "" {
			continue
		}

		entityType := e.Type
		if entityType == "" {
			entityType = string(domain.EntityPerson)
		}

		role := e.Role
		if role == "" {
			role = string(domain.RoleMentioned)
		}

		if !domain.ValidEntityType(entityType) || !domain.ValidEntityRole(role) {
			continue
		}

		aliases := e.Aliases
		if aliases == nil {
			aliases = []string{}
		}

		entities = append(entities, domain.Entity{
			Name:    e.Name,
			Type:    domain.EntityType(entityType),
			Role:    domain.EntityRole(role),
			Aliases: aliases,
		})
	}

	claims := raw.Claims
	if claims == nil {
		claims = []string{}
	}

	tags := raw.TopicTags
	if tags == nil {
		tags = []string{}
	}

	return domain.EnrichmentResult{
		Summary:   *raw.Summary,
		Entities:  entities,
		Claims:    claims,
		Framing:   *raw.Framing,
		Sentiment: domain.ClampSentiment(*raw.Sentiment),
		TopicTags: tags,
	}, nil
}
