// Package collab simulates a multi-agent collaboration: a scripted
// inter-agent conversation and a timed progress sequence, both delivered on
// fixed schedules and cancellable as a unit.
package collab

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/crewdesk/internal/detect"
)

// MessageType classifies an inter-agent message.
type MessageType string

const (
	TypeCoordination MessageType = "coordination"
	TypeQuestion     MessageType = "question"
	TypeUpdate       MessageType = "update"
	TypeSuggestion   MessageType = "suggestion"
	TypeCompletion   MessageType = "completion"
)

// Priority of an inter-agent message.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// MessageInterval separates consecutive inter-agent message deliveries.
const MessageInterval = 2 * time.Second

// InterAgentMessage is one scripted line between agents. An empty ToAgent
// means a broadcast. Timestamp is the scheduled delivery slot.
type InterAgentMessage struct {
	ID        string      `json:"id"`
	FromAgent string      `json:"fromAgent"`
	ToAgent   string      `json:"toAgent,omitempty"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
	Priority  Priority    `json:"priority"`
}

type line struct {
	from, to string
	text     string
	typ      MessageType
	priority Priority
}

// Conversation returns the scripted messages for taskID, stamped at
// MessageInterval slots from start. Tasks without a script get one
// coordination line per agent.
func Conversation(taskID string, agents []string, collabID string, start time.Time) []InterAgentMessage {
	script, ok := scripts[taskID]
	if !ok {
		script = genericScript(agents)
	}
	out := make([]InterAgentMessage, len(script))
	for i, l := range script {
		out[i] = InterAgentMessage{
			ID:        fmt.Sprintf("%s-msg-%d", collabID, i),
			FromAgent: l.from,
			ToAgent:   l.to,
			Message:   l.text,
			Timestamp: start.Add(time.Duration(i) * MessageInterval),
			Type:      l.typ,
			Priority:  l.priority,
		}
	}
	return out
}

func genericScript(agents []string) []line {
	script := make([]line, 0, len(agents))
	for _, name := range agents {
		text := name + " ready for collaboration."
		if s := detect.LookupAgent(name).Specialty(); s != "" {
			text += " I'll handle " + strings.ToLower(s) + "."
		}
		script = append(script, line{from: name, text: text, typ: TypeCoordination, priority: PriorityNormal})
	}
	return script
}

var scripts = map[string][]line{
	"marketing-campaign": {
		{"Research Agent", "", "Starting market research for the campaign. I'll analyze competitor strategies and target demographics.", TypeCoordination, PriorityNormal},
		{"Web Agent", "Research Agent", "Perfect! I'll prepare content frameworks while you gather data. What's our primary target age group?", TypeQuestion, PriorityNormal},
		{"Research Agent", "Web Agent", "Primary target is 25-40 years old, tech-savvy professionals. High engagement on LinkedIn and Instagram.", TypeUpdate, PriorityNormal},
		{"Web Agent", "", "Excellent! I'll focus on professional yet engaging content. Creating LinkedIn articles and Instagram visual content.", TypeCoordination, PriorityNormal},
		{"Research Agent", "", "Found that our competitors are weak in video content. Opportunity for differentiation there.", TypeSuggestion, PriorityHigh},
		{"Web Agent", "Research Agent", "Great insight! I'll prioritize video content creation. Can you share the competitor analysis data?", TypeQuestion, PriorityNormal},
		{"Research Agent", "", "Research phase complete. Sharing comprehensive competitor analysis and market insights now.", TypeCompletion, PriorityHigh},
		{"Web Agent", "", "Received all data. Creating final campaign materials with video-first strategy. ETA 3 minutes.", TypeCoordination, PriorityHigh},
	},
	"business-strategy": {
		{"Research Agent", "", "Beginning comprehensive market analysis for business strategy development.", TypeCoordination, PriorityNormal},
		{"Data Analysis", "Research Agent", "I'll prepare financial models and performance metrics. What's our primary business focus?", TypeQuestion, PriorityNormal},
		{"Research Agent", "Data Analysis", "Focus on SaaS market expansion. I'm seeing strong growth in enterprise segment.", TypeUpdate, PriorityNormal},
		{"Content Synthesis", "", "Standing by to compile final strategy document. Will need both market data and financial projections.", TypeCoordination, PriorityNormal},
		{"Data Analysis", "", "Financial analysis shows 40% growth potential in enterprise segment. ROI projections looking strong.", TypeUpdate, PriorityNormal},
		{"Research Agent", "Content Synthesis", "Market research complete. Enterprise segment has 3x higher LTV than SMB. Recommend strategic pivot.", TypeSuggestion, PriorityHigh},
		{"Content Synthesis", "", "Excellent findings! Synthesizing strategy with enterprise-first approach. Including risk mitigation plans.", TypeCoordination, PriorityNormal},
		{"Data Analysis", "Content Synthesis", "Sending final financial models and 5-year projections. Break-even at month 18 with enterprise focus.", TypeCompletion, PriorityHigh},
		{"Content Synthesis", "", "Strategy document complete! Comprehensive plan with market analysis, financial projections, and implementation roadmap.", TypeCompletion, PriorityHigh},
	},
	"product-development": {
		{"Research Agent", "", "Starting user research and market validation for product development.", TypeCoordination, PriorityNormal},
		{"Data Analysis", "", "I'll analyze user behavior patterns and feature usage data. What's our target user persona?", TypeQuestion, PriorityNormal},
		{"Web Agent", "Research Agent", "Ready to create product documentation and marketing materials. What's the core value proposition?", TypeQuestion, PriorityNormal},
		{"Research Agent", "", "Target persona: Product managers at mid-size companies. Core value: Streamlined workflow automation.", TypeUpdate, PriorityNormal},
		{"Data Analysis", "Research Agent", "Found that 78% of target users struggle with manual processes. Automation is definitely the right focus.", TypeUpdate, PriorityNormal},
		{"Web Agent", "", "Perfect! I'll emphasize time-saving and efficiency in all marketing materials.", TypeCoordination, PriorityNormal},
		{"Research Agent", "", "User interviews reveal demand for Slack integration and mobile app. High priority features.", TypeSuggestion, PriorityHigh},
		{"Data Analysis", "", "Analytics confirm: Users with integrations have 3x higher retention. Mobile usage growing 25% monthly.", TypeUpdate, PriorityHigh},
		{"Web Agent", "Data Analysis", "I'll highlight integration capabilities prominently. Can you share the retention data for the landing page?", TypeQuestion, PriorityNormal},
		{"Data Analysis", "", "Product analysis complete. Sharing user behavior insights and feature prioritization matrix.", TypeCompletion, PriorityHigh},
		{"Web Agent", "", "All materials ready! Product documentation, marketing site, and launch campaign complete.", TypeCompletion, PriorityHigh},
	},
}
