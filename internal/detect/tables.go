package detect

var collaborationPatterns = []CollaborationPattern{
	{
		Keywords: []string{"comprehensive", "full", "complete", "end-to-end", "detailed", "thorough"},
		Task: CollaborationTask{
			ID:             "comprehensive-analysis",
			Description:    "Comprehensive analysis and planning with multiple specialized perspectives",
			RequiredAgents: []string{"Research Agent", "Data Analysis"},
			EstimatedTime:  "15-20 min",
			Complexity:     ComplexityHigh,
		},
	},
	{
		Keywords: []string{"marketing", "campaign", "promotion", "launch", "brand"},
		Task: CollaborationTask{
			ID:             "marketing-campaign",
			Description:    "Complete marketing campaign development from research to content creation",
			RequiredAgents: []string{"Research Agent", "Web Agent"},
			EstimatedTime:  "12-15 min",
			Complexity:     ComplexityMedium,
		},
	},
	{
		Keywords: []string{"event", "conference", "meeting", "workshop", "seminar"},
		Task: CollaborationTask{
			ID:             "event-planning",
			Description:    "Full event planning with logistics, content, and promotional materials",
			RequiredAgents: []string{"Planner Agent", "Web Agent"},
			EstimatedTime:  "10-12 min",
			Complexity:     ComplexityMedium,
		},
	},
	{
		Keywords: []string{"business", "strategy", "plan", "proposal", "presentation"},
		Task: CollaborationTask{
			ID:             "business-strategy",
			Description:    "Business strategy development with research, analysis, and presentation",
			RequiredAgents: []string{"Research Agent", "Data Analysis", "Content Synthesis"},
			EstimatedTime:  "18-25 min",
			Complexity:     ComplexityHigh,
		},
	},
	{
		Keywords: []string{"product", "development", "design", "prototype", "innovation"},
		Task: CollaborationTask{
			ID:             "product-development",
			Description:    "Product development process from research to marketing materials",
			RequiredAgents: []string{"Research Agent", "Data Analysis", "Web Agent"},
			EstimatedTime:  "20-25 min",
			Complexity:     ComplexityHigh,
		},
	},
}

var handoffPatterns = []HandoffPattern{
	{
		Keywords: []string{"video", "animation", "movie", "film", "visual", "graphics"},
		Reason: HandoffReason{
			Reason:          "Video Content Creation",
			Description:     "This request involves video or visual content creation which requires specialized video production capabilities.",
			SuggestedAgents: []string{"Video Agent"},
		},
	},
	{
		Keywords: []string{"data", "analyze", "statistics", "chart", "graph", "metrics", "dashboard"},
		Reason: HandoffReason{
			Reason:          "Data Analysis Required",
			Description:     "This task involves data analysis, statistics, or visualization which requires specialized analytical capabilities.",
			SuggestedAgents: []string{"Data Analysis"},
		},
	},
	{
		Keywords: []string{"research", "study", "investigate", "find information", "academic", "literature"},
		Reason: HandoffReason{
			Reason:          "Research Expertise Needed",
			Description:     "This request requires deep research capabilities and information gathering expertise.",
			SuggestedAgents: []string{"Research Agent"},
		},
	},
	{
		Keywords: []string{"call", "phone", "reservation", "book", "appointment", "contact"},
		Reason: HandoffReason{
			Reason:          "Phone Communication Required",
			Description:     "This task involves making phone calls or handling reservations which requires phone communication capabilities.",
			SuggestedAgents: []string{"Phone Agent"},
		},
	},
	{
		Keywords: []string{"plan", "itinerary", "schedule", "organize", "event", "trip"},
		Reason: HandoffReason{
			Reason:          "Planning Expertise Required",
			Description:     "This request involves detailed planning and organization which requires specialized planning capabilities.",
			SuggestedAgents: []string{"Planner Agent"},
		},
	},
	{
		Keywords: []string{"website", "blog", "content", "write", "copy", "social media"},
		Reason: HandoffReason{
			Reason:          "Web Content Creation",
			Description:     "This task involves web content creation or writing which requires specialized content creation capabilities.",
			SuggestedAgents: []string{"Web Agent"},
		},
	},
	{
		Keywords: []string{"summarize", "report", "synthesis", "compile", "document"},
		Reason: HandoffReason{
			Reason:          "Content Synthesis Required",
			Description:     "This request involves summarizing or synthesizing content which requires specialized synthesis capabilities.",
			SuggestedAgents: []string{"Content Synthesis"},
		},
	},
}
