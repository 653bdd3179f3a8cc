package agent

// State is a phase in the per-message turn lifecycle. Every turn walks
// a path from StateParseIntent to StateDone; there is no global
// workflow, just this enum and Next.
type State string

const (
	StateParseIntent     State = "parse_intent"
	StateAgent           State = "agent"
	StateExecuteTools    State = "execute_tools"
	StateRequestApproval State = "request_approval"
	StateExecuteApproved State = "execute_approved"
	StateRespond         State = "respond"
	StateCheckProactive  State = "check_proactive"
	StateDone            State = "done"
)

// Event is what happened during a phase, driving the transition.
type Event string

const (
	EventConversational   Event = "conversational"
	EventActionable       Event = "actionable"
	EventApprovalGranted  Event = "approval_granted"
	EventApprovalRejected Event = "approval_rejected"
	EventToolsRequested   Event = "tools_requested"
	EventToolsExecuted    Event = "tools_executed"
	EventApprovalRequired Event = "approval_required"
	EventAgentDone        Event = "agent_done"
	EventResponded        Event = "responded"
	EventProactiveChecked Event = "proactive_checked"
)

// Next is the turn's total transition function. Unrecognized pairs
// fall through to StateRespond so a turn always reaches the user.
func Next(s State, ev Event) State {
	switch s {
	case StateParseIntent:
		switch ev {
		case EventActionable:
			return StateAgent
		case EventConversational:
			return StateRespond
		case EventApprovalGranted:
			return StateExecuteApproved
		case EventApprovalRejected:
			return StateRespond
		}

	case StateAgent:
		switch ev {
		case EventToolsRequested:
			return StateExecuteTools
		case EventApprovalRequired:
			return StateRequestApproval
		case EventAgentDone:
			return StateRespond
		}

	case StateExecuteTools:
		if ev == EventToolsExecuted {
			return StateAgent
		}

	case StateRequestApproval:
		return StateRespond

	case StateExecuteApproved:
		return StateRespond

	case StateRespond:
		return StateCheckProactive

	case StateCheckProactive:
		return StateDone
	}
	return StateRespond
}
