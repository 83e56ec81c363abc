package detect

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/crewdesk/internal/chat"
)

// Suggestion builds the bot message offering the detected collaboration or
// handoff. It returns false when r detected nothing.
func Suggestion(r Result, currentAgent string, now time.Time) (chat.Message, bool) {
	switch {
	case r.Collaboration != nil:
		msg := chat.NewMessage(chat.KindBot, fmt.Sprintf(
			"This looks like a complex task that would benefit from multiple agents working together. I can coordinate with %s to provide you with comprehensive results.",
			strings.Join(r.Collaboration.RequiredAgents, ", ")), now)
		msg.SubText = "Click 'Start Collaboration' to begin multi-agent coordination"
		msg.AgentName = currentAgent
		return msg, true
	case r.Handoff != nil:
		target := ""
		if len(r.Handoff.SuggestedAgents) > 0 {
			target = r.Handoff.SuggestedAgents[0]
		}
		msg := chat.NewMessage(chat.KindBot, fmt.Sprintf(
			"I notice this request involves %s. While I can try to help, I think you'd get better results from our %s. Would you like me to transfer this conversation?",
			strings.ToLower(r.Handoff.Reason), target), now)
		msg.SubText = "Click 'Transfer Conversation' to connect with a specialized agent"
		msg.AgentName = currentAgent
		return msg, true
	}
	return chat.Message{}, false
}

// HandoffMessages builds the transfer record and the new agent's welcome.
func HandoffMessages(fromAgent, toAgent, reason, note string, now time.Time) []chat.Message {
	target := LookupAgent(toAgent)
	transfer := chat.NewMessage(chat.KindHandoff, "Conversation transferred to "+toAgent, now)
	transfer.SubText = note
	if transfer.SubText == "" && target.Specialty() != "" {
		transfer.SubText = "Specialized in " + target.Specialty()
	}
	transfer.Handoff = &chat.HandoffData{FromAgent: fromAgent, ToAgent: toAgent, Reason: reason, Note: note}

	welcome := chat.NewMessage(chat.KindBot, fmt.Sprintf(
		"Hello! I'm the %s. I've been briefed on your request and I'm ready to help with %s.",
		toAgent, strings.ToLower(reason)), now)
	welcome.AgentName = toAgent
	return []chat.Message{transfer, welcome}
}
