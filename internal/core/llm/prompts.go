package llm

// enrichmentPrompt is the extraction prompt sent once per item. The
// {content} token is replaced with the (truncated) item body.
const enrichmentPrompt = `Analyze the following news/social media content and extract structured intelligence.

CONTENT:
{content}

Respond with a JSON object containing exactly these fields:
{
  "summary": "2-3 sentence summary of the key narrative",
  "entities": [
    {"name": "entity name", "type": "person|org|place|event", "role": "subject|target|source|location|mentioned", "aliases": []}
  ],
  "claims": ["list of factual claims or assertions made"],
  "framing": "how the narrative is framed (e.g., 'crisis framing', 'progress narrative', 'conflict framing')",
  "sentiment": 0.0,
  "topic_tags": ["relevant", "topic", "tags"]
}

Rules:
- sentiment must be a float between -1.0 (very negative) and 1.0 (very positive)
- Include 1-5 entities with accurate types and roles
- Include 1-5 claims that are specific assertions from the content
- Respond with ONLY the JSON object, no other text`

// retryNudge is the follow-up user turn sent after a reply that failed to
// parse.
const retryNudge = "Your response was not valid JSON. Please respond with ONLY a valid JSON object."
