package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/approval"
	"github.com/calder/pennyworth/internal/executor"
	"github.com/calder/pennyworth/internal/planner"
	"github.com/calder/pennyworth/internal/proactive"
)

const cancelledReply = "Understood, I've cancelled that action."

// History is the slice of the store the engine needs for conversation
// context.
type History interface {
	AddMessage(chatID, role, content string) error
	GetHistory(chatID string, limit int) ([]llms.MessageContent, error)
}

// turn is the per-message state threaded through the phase functions.
// One turn never outlives its message; plans paused on approval are
// parked in the engine's registry between turns.
type turn struct {
	UserID         string
	Channel        string
	ConversationID string
	Message        string

	Intent     planner.Intent
	Plan       *planner.Plan
	Approval   *approval.PendingApproval
	Response   string
	execResult *executor.ExecutionResult
	iterations int
}

// Engine drives the turn state machine: intent, plan, execute, gate,
// respond. Safe for concurrent turns from different users.
type Engine struct {
	Model      llms.Model
	Classifier *planner.Classifier
	Builder    *planner.Builder
	Exec       *executor.Executor
	Approvals  *approval.Manager
	History    History
	Proactive  *proactive.Engine
	Prompts    *PromptManager
	Log        *zap.Logger

	MaxIterations       int
	MinActionConfidence float64
	HistoryWindow       int

	mu          sync.Mutex
	activePlans map[string]*planner.Plan // keyed by plan ID
}

type EngineConfig struct {
	MaxIterations       int
	MinActionConfidence float64
	HistoryWindow       int
}

func NewEngine(model llms.Model, classifier *planner.Classifier, builder *planner.Builder,
	exec *executor.Executor, approvals *approval.Manager, history History,
	pro *proactive.Engine, prompts *PromptManager, cfg EngineConfig, log *zap.Logger) *Engine {
	return &Engine{
		Model:               model,
		Classifier:          classifier,
		Builder:             builder,
		Exec:                exec,
		Approvals:           approvals,
		History:             history,
		Proactive:           pro,
		Prompts:             prompts,
		Log:                 log,
		MaxIterations:       cfg.MaxIterations,
		MinActionConfidence: cfg.MinActionConfidence,
		HistoryWindow:       cfg.HistoryWindow,
		activePlans:         make(map[string]*planner.Plan),
	}
}

// HandleMessage runs one full turn and returns the reply text.
func (e *Engine) HandleMessage(ctx context.Context, userID, channel, conversationID, message string) (string, error) {
	t := &turn{
		UserID:         userID,
		Channel:        channel,
		ConversationID: conversationID,
		Message:        message,
	}

	state := StateParseIntent
	for state != StateDone {
		var ev Event
		switch state {
		case StateParseIntent:
			ev = e.parseIntent(ctx, t)
		case StateAgent:
			ev = e.agentPhase(ctx, t)
		case StateExecuteTools:
			ev = e.executeTools(ctx, t)
		case StateRequestApproval:
			ev = EventResponded
		case StateExecuteApproved:
			ev = e.executeApproved(ctx, t)
		case StateRespond:
			ev = e.respond(ctx, t)
		case StateCheckProactive:
			ev = e.checkProactive(ctx, t)
		}
		next := Next(state, ev)
		e.Log.Debug("turn transition",
			zap.String("from", string(state)), zap.String("event", string(ev)),
			zap.String("to", string(next)))
		state = next
	}
	return t.Response, nil
}

// parseIntent routes approval replies before classifying anything. A
// message that parses as a decision while an approval is outstanding
// belongs to the approval protocol, not to a new intent.
func (e *Engine) parseIntent(ctx context.Context, t *turn) Event {
	if recent := e.Approvals.MostRecent(t.UserID); recent != nil &&
		(recent.Status == approval.StatusPending || recent.Status == approval.StatusExpired) &&
		approval.ParseDecision(t.Message).Kind != approval.DecisionNone {

		resolved, msg := e.Approvals.ResolveFromMessage(t.UserID, t.Message)
		switch {
		case resolved != nil && resolved.Status == approval.StatusApproved:
			t.Approval = resolved
			return EventApprovalGranted
		case resolved != nil && resolved.Status == approval.StatusRejected:
			t.Response = cancelledReply
			e.dropPlan(resolved.PlanID.String())
			return EventApprovalRejected
		case msg != "":
			t.Response = msg
			return EventApprovalRejected
		}
	}

	extra := map[string]any{}
	if history, err := e.History.GetHistory(t.ConversationID, e.HistoryWindow); err == nil && len(history) > 0 {
		extra["recent_messages"] = flattenHistory(history)
	}

	t.Intent = e.Classifier.Classify(ctx, t.Message, extra)
	e.Log.Info("intent parsed",
		zap.String("user", t.UserID),
		zap.String("category", string(t.Intent.Category)),
		zap.String("action", t.Intent.Action),
		zap.Float64("confidence", t.Intent.Confidence))

	if t.Intent.RequiresClarification && len(t.Intent.ClarificationQuestions) > 0 {
		t.Response = strings.Join(t.Intent.ClarificationQuestions, "\n")
		return EventConversational
	}
	if t.Intent.Actionable(e.MinActionConfidence) {
		return EventActionable
	}
	return EventConversational
}

// agentPhase decides what the turn does next: execute pending steps,
// pause on an approval gate, or wrap up with a reply.
func (e *Engine) agentPhase(ctx context.Context, t *turn) Event {
	if t.Plan == nil {
		t.Plan = e.Builder.CreatePlan(ctx, t.Intent, nil)
		if len(t.Plan.Steps) == 0 {
			return EventAgentDone
		}
	}

	if res := t.execResult; res != nil {
		if res.RequiresApproval {
			t.Approval = res.Approval
			t.Response = res.Response
			e.parkPlan(t.Plan)
			return EventApprovalRequired
		}
		if !res.Success {
			t.Response = res.Response
			return EventAgentDone
		}
	}

	if len(t.Plan.Remaining()) > 0 {
		if t.iterations >= e.MaxIterations {
			t.Response = "That request needed more steps than I allow in one go. Could you try a simpler request?"
			return EventAgentDone
		}
		t.iterations++
		return EventToolsRequested
	}

	// Every step done: let the planner either extend the plan or give
	// the final wording.
	steps, text := e.Builder.Continue(ctx, t.Plan, e.resultsDigest(t))
	if len(steps) > 0 {
		if t.iterations >= e.MaxIterations {
			t.Response = "That request needed more steps than I allow in one go. Could you try a simpler request?"
			return EventAgentDone
		}
		t.iterations++
		return EventToolsRequested
	}
	if text != "" {
		t.Response = text
	} else if t.execResult != nil && t.execResult.Response != "" {
		t.Response = t.execResult.Response
	}
	return EventAgentDone
}

func (e *Engine) executeTools(ctx context.Context, t *turn) Event {
	t.execResult = e.Exec.ExecutePlan(ctx, t.Plan, t.UserID, t.Channel)
	return EventToolsExecuted
}

// executeApproved resumes the plan an approval was guarding.
func (e *Engine) executeApproved(ctx context.Context, t *turn) Event {
	plan := e.takePlan(t.Approval.PlanID.String())
	if plan == nil {
		t.Response = "Sorry, I lost track of that request. Please start over."
		return EventAgentDone
	}

	res := e.Exec.ResumeAfterApproval(ctx, plan, t.Approval, t.UserID, t.Channel)
	switch {
	case res.RequiresApproval:
		// The next step is gated too; park again and prompt.
		t.Approval = res.Approval
		t.Response = res.Response
		e.parkPlan(plan)
	case res.Success:
		reply := res.Response
		if reply == "" {
			reply = res.Summary
		}
		t.Response = "Done! " + reply
	default:
		t.Response = res.Response
	}
	return EventAgentDone
}

// respond produces the final reply, generating a conversational answer
// when no phase set one, and records both sides in history.
func (e *Engine) respond(ctx context.Context, t *turn) Event {
	if t.Response == "" {
		t.Response = e.converse(ctx, t)
	}

	if err := e.History.AddMessage(t.ConversationID, "human", t.Message); err != nil {
		e.Log.Warn("failed to save user message", zap.Error(err))
	}
	if err := e.History.AddMessage(t.ConversationID, "ai", t.Response); err != nil {
		e.Log.Warn("failed to save reply", zap.Error(err))
	}
	return EventResponded
}

func (e *Engine) converse(ctx context.Context, t *turn) string {
	msgs := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(e.Prompts.PersonaPrompt())}},
	}
	if history, err := e.History.GetHistory(t.ConversationID, e.HistoryWindow); err == nil {
		msgs = append(msgs, history...)
	}
	msgs = append(msgs, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(t.Message)},
	})

	resp, err := e.Model.GenerateContent(ctx, msgs)
	if err != nil || len(resp.Choices) == 0 {
		e.Log.Warn("conversational reply failed", zap.Error(err))
		return "Sorry, I'm having trouble thinking right now. Please try again in a moment."
	}
	return strings.TrimSpace(resp.Choices[0].Content)
}

func (e *Engine) checkProactive(ctx context.Context, t *turn) Event {
	if e.Proactive == nil {
		return EventProactiveChecked
	}
	notes := e.Proactive.Check(ctx, t.UserID)
	if len(notes) > 0 {
		var b strings.Builder
		b.WriteString(t.Response)
		b.WriteString("\n\n---\n")
		for _, n := range notes {
			b.WriteString(n.Message)
			b.WriteString("\n")
		}
		t.Response = strings.TrimRight(b.String(), "\n")
	}
	return EventProactiveChecked
}

// resultsDigest summarizes completed step results for the planner.
func (e *Engine) resultsDigest(t *turn) string {
	var b strings.Builder
	for _, s := range t.Plan.Steps {
		if s.Status != planner.StepCompleted {
			continue
		}
		fmt.Fprintf(&b, "- %s.%s: ", s.Capability, s.Action)
		if blob, err := json.Marshal(s.Result); err == nil {
			b.Write(blob)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Engine) parkPlan(p *planner.Plan) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activePlans[p.ID.String()] = p
}

func (e *Engine) takePlan(id string) *planner.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.activePlans[id]
	delete(e.activePlans, id)
	return p
}

func (e *Engine) dropPlan(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activePlans, id)
}

func flattenHistory(history []llms.MessageContent) []string {
	var out []string
	for _, m := range history {
		for _, p := range m.Parts {
			if text, isText := p.(llms.TextContent); isText {
				out = append(out, string(m.Role)+": "+text.Text)
			}
		}
	}
	return out
}
