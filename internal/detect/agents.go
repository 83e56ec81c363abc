package detect

// Agent is static roster metadata for a named agent.
type Agent struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Specialties []string `json:"specialties"`
}

// Specialty returns the agent's primary specialty, or "" if none is listed.
func (a Agent) Specialty() string {
	if len(a.Specialties) == 0 {
		return ""
	}
	return a.Specialties[0]
}

var roster = []Agent{
	{Name: "Planner Agent", Description: "Creates detailed plans and itineraries", Specialties: []string{
		"Multi-destination travel itineraries", "Budget-conscious planning", "Group coordination and logistics", "Time-sensitive scheduling",
	}},
	{Name: "Phone Agent", Description: "Makes calls and handles reservations", Specialties: []string{
		"Fine dining reservations", "Medical appointment scheduling", "Service provider coordination", "Follow-up communications",
	}},
	{Name: "Video Agent", Description: "Generates video content", Specialties: []string{
		"Educational content creation", "Marketing video production", "Social media content", "Presentation videos",
	}},
	{Name: "Research Agent", Description: "Performs deep research on topics", Specialties: []string{
		"Industry trend analysis", "Scientific literature review", "Market opportunity assessment", "Fact-checking and verification",
	}},
	{Name: "Data Analysis", Description: "Analyzes datasets and statistics", Specialties: []string{
		"Sales performance analysis", "Customer behavior insights", "Financial forecasting", "A/B testing evaluation",
	}},
	{Name: "Web Agent", Description: "Creates web content", Specialties: []string{
		"Blog post writing", "Landing page optimization", "Social media content", "Email marketing campaigns",
	}},
	{Name: "Content Synthesis", Description: "Creates summaries and reports", Specialties: []string{
		"Executive summary creation", "Research report compilation", "Meeting notes synthesis", "Multi-source content aggregation",
	}},
}

// Agents returns the known agent roster.
func Agents() []Agent {
	out := make([]Agent, len(roster))
	copy(out, roster)
	return out
}

// LookupAgent finds an agent by name. Unknown names yield a bare Agent
// carrying only the name, since agents are opaque remote collaborators.
func LookupAgent(name string) Agent {
	for _, a := range roster {
		if a.Name == name {
			return a
		}
	}
	return Agent{Name: name}
}
