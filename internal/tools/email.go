package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EmailMessage is a mailbox entry or draft.
type EmailMessage struct {
	ID      string `json:"id"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Date    string `json:"date"`
}

// EmailProvider drafts, searches and sends mail. Drafting is free;
// anything that leaves the mailbox requires confirmation.
type EmailProvider struct {
	ActionSet

	mu     sync.Mutex
	inbox  []EmailMessage
	drafts map[string][]EmailMessage // userID -> drafts
}

func NewEmailProvider() *EmailProvider {
	p := &EmailProvider{
		inbox: []EmailMessage{
			{ID: "msg_1", From: "statements@firstnational.com", Subject: "Your August statement is ready", Body: "Your checking account statement for August is available.", Date: "2025-08-21"},
			{ID: "msg_2", From: "sam@example.com", Subject: "Dinner thursday?", Body: "Still on for thursday night?", Date: "2025-08-22"},
		},
		drafts: make(map[string][]EmailMessage),
	}

	p.register(Action{
		Name:        "draft",
		Description: "Draft an email without sending it",
		Parameters: map[string]Param{
			"to":      {Type: "string", Required: true},
			"subject": {Type: "string", Required: true},
			"body":    {Type: "string", Required: true},
		},
	})
	p.register(Action{
		Name:        "search",
		Description: "Search the mailbox",
		Parameters: map[string]Param{
			"query": {Type: "string", Required: true},
		},
	})
	p.register(Action{
		Name:        "read",
		Description: "Read a message by id",
		Parameters: map[string]Param{
			"message_id": {Type: "string", Required: true},
		},
	})
	p.register(Action{
		Name:        "send",
		Description: "Send a drafted email",
		Parameters: map[string]Param{
			"draft_id": {Type: "string", Description: "Draft to send; omit to send an inline message"},
			"to":       {Type: "string"},
			"subject":  {Type: "string"},
			"body":     {Type: "string"},
		},
		Approval: ApprovalConfirm,
	})
	p.register(Action{
		Name:        "reply",
		Description: "Reply to a message",
		Parameters: map[string]Param{
			"message_id": {Type: "string", Required: true},
			"body":       {Type: "string", Required: true},
		},
		Approval: ApprovalConfirm,
	})
	return p
}

func (p *EmailProvider) Name() string { return "email" }

func (p *EmailProvider) Description() string {
	return "Draft, search, read, and send email."
}

func (p *EmailProvider) Execute(ctx context.Context, action string, params map[string]any, userID string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch action {
	case "draft":
		to, _ := params["to"].(string)
		subject, _ := params["subject"].(string)
		body, _ := params["body"].(string)
		d := EmailMessage{ID: uuid.NewString(), To: to, Subject: subject, Body: body, Date: time.Now().Format("2006-01-02")}
		p.drafts[userID] = append(p.drafts[userID], d)
		return ok(fmt.Sprintf("Draft to %s saved (%s): %q", to, d.ID, subject), d), nil

	case "search":
		query, _ := params["query"].(string)
		q := strings.ToLower(query)
		var hits []EmailMessage
		for _, m := range p.inbox {
			if strings.Contains(strings.ToLower(m.Subject), q) || strings.Contains(strings.ToLower(m.Body), q) {
				hits = append(hits, m)
			}
		}
		if len(hits) == 0 {
			return ok(fmt.Sprintf("No messages matching %q.", query), nil), nil
		}
		lines := make([]string, 0, len(hits))
		for _, m := range hits {
			lines = append(lines, fmt.Sprintf("%s  %s - %s (%s)", m.Date, m.From, m.Subject, m.ID))
		}
		return ok(fmt.Sprintf("%d messages:\n%s", len(hits), strings.Join(lines, "\n")), hits), nil

	case "read":
		messageID, _ := params["message_id"].(string)
		for _, m := range p.inbox {
			if m.ID == messageID {
				return ok(fmt.Sprintf("From %s, %s: %s\n\n%s", m.From, m.Date, m.Subject, m.Body), m), nil
			}
		}
		return fail("no message found with id %s", messageID), nil

	case "send":
		if draftID, found := params["draft_id"].(string); found && draftID != "" {
			drafts := p.drafts[userID]
			for i, d := range drafts {
				if d.ID == draftID {
					p.drafts[userID] = append(drafts[:i], drafts[i+1:]...)
					return ok(fmt.Sprintf("Sent %q to %s.", d.Subject, d.To), d), nil
				}
			}
			return fail("no draft found with id %s", draftID), nil
		}
		to, _ := params["to"].(string)
		subject, _ := params["subject"].(string)
		if to == "" {
			return fail("nothing to send: provide a draft_id or a recipient"), nil
		}
		return ok(fmt.Sprintf("Sent %q to %s.", subject, to), nil), nil

	case "reply":
		messageID, _ := params["message_id"].(string)
		for _, m := range p.inbox {
			if m.ID == messageID {
				return ok(fmt.Sprintf("Replied to %s (%s).", m.From, m.Subject), nil), nil
			}
		}
		return fail("no message found with id %s", messageID), nil

	default:
		return fail("unknown email action: %s", action), nil
	}
}
