package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// IntentCategory is the high-level bucket a message falls into.
type IntentCategory string

const (
	CategoryTravel       IntentCategory = "travel"
	CategoryFinance      IntentCategory = "finance"
	CategoryCalendar     IntentCategory = "calendar"
	CategoryEmail        IntentCategory = "email"
	CategoryResearch     IntentCategory = "research"
	CategoryConversation IntentCategory = "conversation"
	CategoryUnknown      IntentCategory = "unknown"
)

func parseCategory(s string) IntentCategory {
	switch IntentCategory(s) {
	case CategoryTravel, CategoryFinance, CategoryCalendar, CategoryEmail,
		CategoryResearch, CategoryConversation:
		return IntentCategory(s)
	default:
		return CategoryUnknown
	}
}

// Intent is a parsed user request. Created once per message and never
// mutated afterwards.
type Intent struct {
	ID                     uuid.UUID
	Category               IntentCategory
	Action                 string
	Parameters             map[string]any
	Confidence             float64
	RequiresClarification  bool
	ClarificationQuestions []string
	RawMessage             string
	ParsedAt               time.Time
}

// Actionable reports whether the intent should drive a plan rather than
// a plain conversational reply.
func (i Intent) Actionable(minConfidence float64) bool {
	switch i.Category {
	case CategoryConversation, CategoryUnknown:
		return false
	}
	return i.Confidence >= minConfidence
}

const classifierSystemPrompt = `You are an intent parser for a personal financial-advisory assistant.

Given a user message, extract the primary intent. Respond ONLY with valid JSON:
{
    "category": "travel|finance|calendar|email|research|conversation",
    "action": "specific_action_name",
    "parameters": {"param": "value"},
    "confidence": 0.0 to 1.0,
    "requires_clarification": true/false,
    "clarification_questions": ["question"]
}

Action mappings:
- travel: search_flights, book_flight, get_itinerary, cancel_booking
- finance: list_accounts, get_transactions, spending_summary, tax_summary, estimate_taxes, submit_tax_return, schedule_payment
- calendar: list_events, find_free_time, create_event, update_event, delete_event
- email: draft, send, search, read, reply
- research: web_search, read_page, stock_quote, currency_convert
- conversation: greeting, thanks, question, clarification

Extract dates, locations, amounts, and other parameters. If critical
information is missing, set requires_clarification and provide questions.`

// Classifier turns free text into a structured Intent using the LLM
// collaborator. Malformed model output degrades to a low-confidence
// conversation intent; it never surfaces an error to the turn.
type Classifier struct {
	Model        llms.Model
	SystemPrompt string
	Log          *zap.Logger
}

func NewClassifier(model llms.Model, log *zap.Logger) *Classifier {
	return &Classifier{Model: model, SystemPrompt: classifierSystemPrompt, Log: log}
}

// Classify parses a message. extra carries optional context (recent
// history, capability catalogue) folded into the user prompt.
func (c *Classifier) Classify(ctx context.Context, message string, extra map[string]any) Intent {
	prompt := "User message: " + message
	if len(extra) > 0 {
		if blob, err := json.Marshal(extra); err == nil {
			prompt += "\n\nContext: " + string(blob)
		}
	}

	msgs := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(c.SystemPrompt)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(prompt)}},
	}

	var resp *llms.ContentResponse
	r := retry.New(retry.Context(ctx), retry.Attempts(3))
	err := r.Do(func() error {
		var callErr error
		resp, callErr = c.Model.GenerateContent(ctx, msgs)
		return callErr
	})
	if err != nil || len(resp.Choices) == 0 {
		c.Log.Warn("intent classification failed", zap.Error(err))
		return Intent{
			ID:         uuid.New(),
			Category:   CategoryUnknown,
			Action:     "error",
			Parameters: map[string]any{"message": message},
			Confidence: 0,
			RawMessage: message,
			ParsedAt:   time.Now(),
		}
	}

	var parsed struct {
		Category               string         `json:"category"`
		Action                 string         `json:"action"`
		Parameters             map[string]any `json:"parameters"`
		Confidence             float64        `json:"confidence"`
		RequiresClarification  bool           `json:"requires_clarification"`
		ClarificationQuestions []string       `json:"clarification_questions"`
	}
	text := stripFences(resp.Choices[0].Content)
	if jsonErr := json.Unmarshal([]byte(text), &parsed); jsonErr != nil {
		c.Log.Debug("classifier returned non-JSON output, treating as conversation",
			zap.String("output", text))
		return Intent{
			ID:         uuid.New(),
			Category:   CategoryConversation,
			Action:     "unknown",
			Parameters: map[string]any{"message": message},
			Confidence: 0.3,
			RawMessage: message,
			ParsedAt:   time.Now(),
		}
	}

	if parsed.Parameters == nil {
		parsed.Parameters = map[string]any{}
	}
	return Intent{
		ID:                     uuid.New(),
		Category:               parseCategory(parsed.Category),
		Action:                 parsed.Action,
		Parameters:             parsed.Parameters,
		Confidence:             clamp01(parsed.Confidence),
		RequiresClarification:  parsed.RequiresClarification,
		ClarificationQuestions: parsed.ClarificationQuestions,
		RawMessage:             message,
		ParsedAt:               time.Now(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stripFences removes a surrounding markdown code block, which models
// add around JSON despite instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	body := lines[1:]
	if strings.HasPrefix(strings.TrimSpace(body[len(body)-1]), "```") {
		body = body[:len(body)-1]
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

// intentSummary renders the intent for planner prompts.
func intentSummary(i Intent) string {
	params, _ := json.Marshal(i.Parameters)
	return fmt.Sprintf("Intent: %s - %s\nParameters: %s\nOriginal message: %s",
		i.Category, i.Action, params, i.RawMessage)
}
