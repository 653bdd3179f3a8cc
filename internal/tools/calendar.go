package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CalendarEvent is one entry on the user's calendar.
type CalendarEvent struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	Where string `json:"where,omitempty"`
}

// CalendarProvider manages the user's schedule. Backed by an in-memory
// calendar seeded with sample events; a CalDAV/Google client slots in
// behind the same actions.
type CalendarProvider struct {
	ActionSet

	mu     sync.Mutex
	events map[string][]CalendarEvent // userID -> events
}

func NewCalendarProvider() *CalendarProvider {
	p := &CalendarProvider{events: make(map[string][]CalendarEvent)}

	p.register(Action{
		Name:        "list_events",
		Description: "List upcoming calendar events",
		Parameters: map[string]Param{
			"days": {Type: "integer", Description: "How many days ahead to look"},
		},
	})
	p.register(Action{
		Name:        "find_free_time",
		Description: "Find free slots in the calendar",
		Parameters: map[string]Param{
			"duration_minutes": {Type: "integer", Required: true},
			"date":             {Type: "string", Description: "Day to search (YYYY-MM-DD)"},
		},
	})
	p.register(Action{
		Name:        "create_event",
		Description: "Create a calendar event",
		Parameters: map[string]Param{
			"title": {Type: "string", Required: true},
			"start": {Type: "string", Description: "Start time (YYYY-MM-DD HH:MM)", Required: true},
			"end":   {Type: "string", Description: "End time (YYYY-MM-DD HH:MM)"},
			"where": {Type: "string"},
		},
		Approval: ApprovalConfirm,
	})
	p.register(Action{
		Name:        "update_event",
		Description: "Update an existing calendar event",
		Parameters: map[string]Param{
			"event_id": {Type: "string", Required: true},
			"title":    {Type: "string"},
			"start":    {Type: "string"},
			"end":      {Type: "string"},
		},
		Approval: ApprovalConfirm,
	})
	p.register(Action{
		Name:        "delete_event",
		Description: "Delete a calendar event",
		Parameters: map[string]Param{
			"event_id": {Type: "string", Required: true},
		},
		Approval: ApprovalConfirm,
	})
	return p
}

func (p *CalendarProvider) Name() string { return "calendar" }

func (p *CalendarProvider) Description() string {
	return "Manage the calendar: list events, find free time, schedule meetings."
}

func (p *CalendarProvider) seed(userID string) {
	if _, seeded := p.events[userID]; seeded {
		return
	}
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	p.events[userID] = []CalendarEvent{
		{ID: uuid.NewString(), Title: "Portfolio review", Start: tomorrow + " 10:00", End: tomorrow + " 10:45", Where: "Video call"},
		{ID: uuid.NewString(), Title: "Dinner with Sam", Start: tomorrow + " 19:00", End: tomorrow + " 21:00"},
	}
}

// Upcoming returns events within the next `days`; used by the proactive
// triggers.
func (p *CalendarProvider) Upcoming(userID string, days int) []CalendarEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seed(userID)
	return append([]CalendarEvent(nil), p.events[userID]...)
}

func (p *CalendarProvider) Execute(ctx context.Context, action string, params map[string]any, userID string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seed(userID)

	switch action {
	case "list_events":
		events := p.events[userID]
		if len(events) == 0 {
			return ok("Your calendar is clear.", nil), nil
		}
		lines := make([]string, 0, len(events))
		for _, e := range events {
			lines = append(lines, fmt.Sprintf("%s: %s (%s)", e.Start, e.Title, e.ID))
		}
		return ok(fmt.Sprintf("%d upcoming events:\n%s", len(events), strings.Join(lines, "\n")), events), nil

	case "find_free_time":
		duration := intParam(params, "duration_minutes", 30)
		date, _ := params["date"].(string)
		if date == "" {
			date = time.Now().AddDate(0, 0, 1).Format("2006-01-02")
		}
		slots := []string{date + " 09:00", date + " 13:30", date + " 16:00"}
		return ok(fmt.Sprintf("Free %d-minute slots on %s: %s", duration, date, strings.Join(slots, ", ")), slots), nil

	case "create_event":
		title, _ := params["title"].(string)
		start, _ := params["start"].(string)
		end, _ := params["end"].(string)
		where, _ := params["where"].(string)
		ev := CalendarEvent{ID: uuid.NewString(), Title: title, Start: start, End: end, Where: where}
		p.events[userID] = append(p.events[userID], ev)
		return ok(fmt.Sprintf("Event %q created for %s.", title, start), ev), nil

	case "update_event":
		eventID, _ := params["event_id"].(string)
		for i, e := range p.events[userID] {
			if e.ID != eventID {
				continue
			}
			if title, found := params["title"].(string); found && title != "" {
				e.Title = title
			}
			if start, found := params["start"].(string); found && start != "" {
				e.Start = start
			}
			if end, found := params["end"].(string); found && end != "" {
				e.End = end
			}
			p.events[userID][i] = e
			return ok(fmt.Sprintf("Event %q updated.", e.Title), e), nil
		}
		return fail("no event found with id %s", eventID), nil

	case "delete_event":
		eventID, _ := params["event_id"].(string)
		events := p.events[userID]
		for i, e := range events {
			if e.ID == eventID {
				p.events[userID] = append(events[:i], events[i+1:]...)
				return ok(fmt.Sprintf("Event %q deleted.", e.Title), nil), nil
			}
		}
		return fail("no event found with id %s", eventID), nil

	default:
		return fail("unknown calendar action: %s", action), nil
	}
}
