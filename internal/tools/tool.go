package tools

import (
	"context"
	"fmt"
	"strings"
)

// ApprovalLevel governs whether an action runs unattended, with notice,
// or only after explicit user confirmation.
type ApprovalLevel int

const (
	ApprovalNone ApprovalLevel = iota
	ApprovalNotify
	ApprovalConfirm
	ApprovalStrict
)

func (l ApprovalLevel) String() string {
	switch l {
	case ApprovalNotify:
		return "notify"
	case ApprovalConfirm:
		return "confirm"
	case ApprovalStrict:
		return "strict"
	default:
		return "none"
	}
}

// RequiresConfirmation reports whether the level gates execution behind
// an explicit approval.
func (l ApprovalLevel) RequiresConfirmation() bool {
	return l >= ApprovalConfirm
}

// Option is a selectable choice presented to the user, e.g. one flight
// out of several search results. Params are merged into the step's
// parameters when the option is picked.
type Option struct {
	Label  string         `json:"label"`
	Params map[string]any `json:"params,omitempty"`
}

// Result is the outcome of a single capability invocation.
type Result struct {
	Success bool
	Data    any
	Error   string
	Summary string
	Options []Option
}

func ok(summary string, data any) *Result {
	return &Result{Success: true, Data: data, Summary: summary}
}

func fail(format string, args ...any) *Result {
	msg := fmt.Sprintf(format, args...)
	return &Result{Success: false, Error: msg, Summary: msg}
}

// Param describes one parameter of an action, JSON-schema style.
type Param struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Required    bool     `json:"required,omitempty"`
}

// Action is a single named operation a provider exposes, with its
// declared approval tier and parameter schema.
type Action struct {
	Name        string
	Description string
	Parameters  map[string]Param
	Approval    ApprovalLevel
}

// Validate checks params against the action's declared schema. Unknown
// keys are allowed; missing required keys and type mismatches are not.
func (a Action) Validate(params map[string]any) error {
	for name, p := range a.Parameters {
		v, present := params[name]
		if !present {
			if p.Required {
				return fmt.Errorf("missing required parameter %q", name)
			}
			continue
		}
		if err := checkType(name, p, v); err != nil {
			return err
		}
	}
	return nil
}

func checkType(name string, p Param, v any) error {
	switch p.Type {
	case "string":
		s, isString := v.(string)
		if !isString {
			return fmt.Errorf("parameter %q must be a string", name)
		}
		if len(p.Enum) > 0 {
			for _, e := range p.Enum {
				if s == e {
					return nil
				}
			}
			return fmt.Errorf("parameter %q must be one of %s", name, strings.Join(p.Enum, ", "))
		}
	case "integer":
		// JSON numbers decode as float64.
		switch n := v.(type) {
		case int:
		case float64:
			if n != float64(int64(n)) {
				return fmt.Errorf("parameter %q must be an integer", name)
			}
		default:
			return fmt.Errorf("parameter %q must be an integer", name)
		}
	case "number":
		switch v.(type) {
		case int, float64:
		default:
			return fmt.Errorf("parameter %q must be a number", name)
		}
	case "boolean":
		if _, isBool := v.(bool); !isBool {
			return fmt.Errorf("parameter %q must be a boolean", name)
		}
	}
	return nil
}

// Schema renders the action's parameters as a JSON schema object for the
// model's function-calling interface.
func (a Action) Schema() map[string]any {
	props := make(map[string]any, len(a.Parameters))
	var required []string
	for name, p := range a.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Provider is the capability contract: a set of named actions with
// declared approval tiers, executed on behalf of a user.
type Provider interface {
	Name() string
	Description() string
	Actions() []Action
	Action(name string) (Action, bool)
	// ApprovalLevel resolves the tier for an action, escalating past the
	// declared default when the estimated cost crosses the provider's
	// thresholds. A zero cost never escalates.
	ApprovalLevel(action string, estimatedCost float64) ApprovalLevel
	Execute(ctx context.Context, action string, params map[string]any, userID string) (*Result, error)
}

// ActionSet implements the catalogue half of Provider and is embedded by
// the concrete providers.
type ActionSet struct {
	actions map[string]Action
	order   []string

	// Costs above NotifyThreshold force confirmation; any positive cost
	// raises the tier to at least notify.
	NotifyThreshold float64
}

func (s *ActionSet) register(a Action) {
	if s.actions == nil {
		s.actions = make(map[string]Action)
	}
	if _, dup := s.actions[a.Name]; !dup {
		s.order = append(s.order, a.Name)
	}
	s.actions[a.Name] = a
}

func (s *ActionSet) Actions() []Action {
	out := make([]Action, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.actions[name])
	}
	return out
}

func (s *ActionSet) Action(name string) (Action, bool) {
	a, found := s.actions[name]
	return a, found
}

func (s *ActionSet) ApprovalLevel(action string, estimatedCost float64) ApprovalLevel {
	level := ApprovalNone
	if a, found := s.actions[action]; found {
		level = a.Approval
	}
	if s.NotifyThreshold > 0 && estimatedCost > s.NotifyThreshold {
		if level < ApprovalConfirm {
			level = ApprovalConfirm
		}
	} else if estimatedCost > 0 && level < ApprovalNotify {
		level = ApprovalNotify
	}
	return level
}

// Registry manages the set of available capability providers.
type Registry struct {
	providers map[string]Provider
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	if _, dup := r.providers[p.Name()]; !dup {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) Provider {
	return r.providers[name]
}

func (r *Registry) List() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Catalog renders the capability+action catalogue for planner prompts.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, p := range r.List() {
		fmt.Fprintf(&b, "- %s: %s\n", p.Name(), p.Description())
		for _, a := range p.Actions() {
			suffix := ""
			if a.Approval.RequiresConfirmation() {
				suffix = fmt.Sprintf(" (requires %s approval)", a.Approval)
			}
			fmt.Fprintf(&b, "  - %s: %s%s\n", a.Name, a.Description, suffix)
		}
	}
	return b.String()
}
