package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnTransitions(t *testing.T) {
	cases := []struct {
		from State
		ev   Event
		want State
	}{
		{StateParseIntent, EventActionable, StateAgent},
		{StateParseIntent, EventConversational, StateRespond},
		{StateParseIntent, EventApprovalGranted, StateExecuteApproved},
		{StateParseIntent, EventApprovalRejected, StateRespond},

		{StateAgent, EventToolsRequested, StateExecuteTools},
		{StateAgent, EventApprovalRequired, StateRequestApproval},
		{StateAgent, EventAgentDone, StateRespond},

		{StateExecuteTools, EventToolsExecuted, StateAgent},

		{StateRequestApproval, EventResponded, StateRespond},
		{StateExecuteApproved, EventAgentDone, StateRespond},

		{StateRespond, EventResponded, StateCheckProactive},
		{StateCheckProactive, EventProactiveChecked, StateDone},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Next(tc.from, tc.ev),
			"Next(%s, %s)", tc.from, tc.ev)
	}
}

func TestUnrecognizedEventFallsBackToRespond(t *testing.T) {
	assert.Equal(t, StateRespond, Next(StateParseIntent, EventToolsExecuted))
	assert.Equal(t, StateRespond, Next(StateAgent, EventConversational))
	assert.Equal(t, StateRespond, Next(StateExecuteTools, EventAgentDone))
}
