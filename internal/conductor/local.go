package conductor

import (
	"strings"
	"time"

	"github.com/zulandar/crewdesk/internal/chat"
)

// LocalReply is the canned answer of the simulation backend. Planning and
// booking requests get a bot-complex reply, which is later followed by
// FollowUp.
func LocalReply(text, agent string, now time.Time) chat.Message {
	lower := strings.ToLower(text)
	var msg chat.Message
	switch {
	case containsAny(lower, "trip", "travel", "plan"):
		msg = chat.NewMessage(chat.KindBotComplex, pick(agent == "Planner Agent",
			"[PlannerAgent] Creating detailed itinerary...\n[ResearchAgent] Finding best attractions and restaurants...",
			"I'll help you with basic planning, but for detailed itineraries, our Planner Agent would be more suitable."), now)
	case containsAny(lower, "reservation", "book", "restaurant"):
		msg = chat.NewMessage(chat.KindBotComplex, pick(agent == "Phone Agent",
			"[PhoneAgent] Calling restaurant for reservation...\n[DataAgent] Checking availability and preferences...",
			"I can provide guidance on reservations, but our Phone Agent can actually make the calls for you."), now)
	case containsAny(lower, "research", "analyze", "find"):
		msg = chat.NewMessage(chat.KindBot, pick(agent == "Research Agent",
			"[ResearchAgent] Conducting comprehensive research on your topic. This may take a moment...",
			"I can do basic research, but our Research Agent has access to more comprehensive databases and analysis tools."), now)
	default:
		msg = chat.NewMessage(chat.KindBot,
			"I understand your request. Let me process that for you and provide the best assistance possible.", now)
	}
	msg.AgentName = agent
	return msg
}

// FollowUp is the success message sent after a bot-complex reply.
func FollowUp(text, agent string, now time.Time) chat.Message {
	lower := strings.ToLower(text)
	msg := chat.NewMessage(chat.KindBotComplex, "Task completed successfully!", now)
	msg.IsSuccess = true
	msg.SubText = "Your request has been processed."
	msg.AgentName = agent
	switch {
	case strings.Contains(lower, "trip"):
		msg.Text = "Trip planning completed successfully!"
		msg.SubText = "Your comprehensive travel plan is ready."
		msg.Details = []string{
			"5-day itinerary with top attractions",
			"Restaurant recommendations with dietary preferences",
			"Booking confirmations and contact details",
		}
	case strings.Contains(lower, "reservation"):
		msg.Details = []string{
			"Table for 4 people confirmed",
			"Window seating as requested",
			"Special dietary requirements noted",
		}
	default:
		msg.Details = []string{"Task completed with all requirements", "Results are ready for review"}
	}
	return msg
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
