package schema

// The fixed step sequence. Section weights sum to 100 within each step so
// a fully filled document always scores exactly 100.

var steps = []*StepDefinition{
	{
		Number: 1,
		Key:    "problem",
		Name:   "Problem Definition",
		Sections: []Section{
			{Key: "problem", Label: "Problem", Weight: 40, Fields: []Field{
				{Path: "problem.statement", Kind: KindText},
				{Path: "problem.background", Kind: KindText},
				{Path: "problem.urgency", Kind: KindText},
			}},
			{Key: "target", Label: "Target", Weight: 35, Fields: []Field{
				{Path: "target.audience", Kind: KindText},
				{Path: "target.context", Kind: KindText},
				{Path: "target.needs", Kind: KindList},
			}},
			{Key: "goal", Label: "Goal", Weight: 25, Fields: []Field{
				{Path: "goal.objective", Kind: KindText},
				{Path: "goal.successMetric", Kind: KindText},
			}},
		},
	},
	{
		Number: 2,
		Key:    "market",
		Name:   "Market Research",
		Sections: []Section{
			{Key: "market", Label: "Market", Weight: 40, Fields: []Field{
				{Path: "market.size", Kind: KindText},
				{Path: "market.growth", Kind: KindText},
				{Path: "market.trends", Kind: KindText},
				{Path: "market.sources", Kind: KindList},
			}},
			{Key: "competitors", Label: "Competitors", Weight: 45, Collection: "competitors", RecordFields: []Field{
				{Path: "name", Kind: KindText},
				{Path: "strength", Kind: KindText},
				{Path: "weakness", Kind: KindText},
				{Path: "differentiation", Kind: KindText},
			}},
			{Key: "summary", Label: "Summary", Weight: 15, Fields: []Field{
				{Path: "summary.insight", Kind: KindText},
			}},
		},
	},
	{
		Number: 3,
		Key:    "personas",
		Name:   "Customer Discovery",
		Sections: []Section{
			// Each persona record carries nine slots across its three
			// nested groups.
			{Key: "personas", Label: "Personas", Weight: 35, Collection: "personas", RecordFields: []Field{
				{Path: "profile.name", Kind: KindText},
				{Path: "profile.age", Kind: KindNumber},
				{Path: "profile.occupation", Kind: KindText},
				{Path: "profile.goal", Kind: KindText},
				{Path: "behaviorPattern.routine", Kind: KindText},
				{Path: "behaviorPattern.channels", Kind: KindList},
				{Path: "behaviorPattern.painPoints", Kind: KindList},
				{Path: "behaviorScenario.situation", Kind: KindText},
				{Path: "behaviorScenario.quote", Kind: KindText},
			}},
			{Key: "interviews", Label: "Interviews", Weight: 40, Collection: "interviews", RecordFields: []Field{
				{Path: "subject", Kind: KindText},
				{Path: "date", Kind: KindText},
				{Path: "findings", Kind: KindText},
				{Path: "quotes", Kind: KindList},
			}},
			{Key: "insights", Label: "Insights", Weight: 25, Fields: []Field{
				{Path: "insights.keyFindings", Kind: KindText},
				{Path: "insights.implications", Kind: KindText},
			}},
		},
		Migrations: []Migration{
			{Name: "lift-singular-persona", Apply: liftSingularPersona},
		},
	},
	{
		Number: 4,
		Key:    "value",
		Name:   "Value Proposition",
		Sections: []Section{
			{Key: "canvas", Label: "Canvas", Weight: 60, Fields: []Field{
				{Path: "canvas.customerJobs", Kind: KindList},
				{Path: "canvas.pains", Kind: KindList},
				{Path: "canvas.gains", Kind: KindList},
				{Path: "canvas.painRelievers", Kind: KindList},
				{Path: "canvas.gainCreators", Kind: KindList},
				{Path: "canvas.productsServices", Kind: KindList},
			}},
			{Key: "statement", Label: "Statement", Weight: 40, Fields: []Field{
				{Path: "statement.headline", Kind: KindText},
				{Path: "statement.description", Kind: KindText},
			}},
		},
	},
	{
		Number: 5,
		Key:    "solution",
		Name:   "Solution Design",
		Sections: []Section{
			{Key: "features", Label: "Features", Weight: 50, Collection: "features", RecordFields: []Field{
				{Path: "name", Kind: KindText},
				{Path: "description", Kind: KindText},
				{Path: "priority", Kind: KindEnum, Options: []string{"must", "should", "could"}},
			}},
			{Key: "scope", Label: "Scope", Weight: 30, Fields: []Field{
				{Path: "scope.inScope", Kind: KindText},
				{Path: "scope.outOfScope", Kind: KindText},
			}},
			{Key: "constraints", Label: "Constraints", Weight: 20, Fields: []Field{
				{Path: "constraints.technical", Kind: KindText},
				{Path: "constraints.budget", Kind: KindText},
			}},
		},
	},
	{
		Number: 6,
		Key:    "businessModel",
		Name:   "Business Model",
		Sections: []Section{
			{Key: "revenue", Label: "Revenue", Weight: 40, Fields: []Field{
				{Path: "revenue.streams", Kind: KindList},
				{Path: "revenue.pricing", Kind: KindText},
			}},
			{Key: "costs", Label: "Costs", Weight: 30, Fields: []Field{
				{Path: "costs.fixed", Kind: KindText},
				{Path: "costs.variable", Kind: KindText},
			}},
			{Key: "channels", Label: "Channels", Weight: 30, Fields: []Field{
				{Path: "channels.acquisition", Kind: KindList},
				{Path: "channels.retention", Kind: KindList},
			}},
		},
	},
	{
		Number: 7,
		Key:    "roadmap",
		Name:   "Execution Roadmap",
		Sections: []Section{
			{Key: "milestones", Label: "Milestones", Weight: 70, Collection: "milestones", RecordFields: []Field{
				{Path: "title", Kind: KindText},
				{Path: "dueDate", Kind: KindText},
				{Path: "owner", Kind: KindText},
				{Path: "deliverable", Kind: KindText},
			}},
			{Key: "risks", Label: "Risks", Weight: 30, Fields: []Field{
				{Path: "risks.top", Kind: KindText},
				{Path: "risks.mitigation", Kind: KindText},
			}},
		},
	},
	{
		Number: 8,
		Key:    "pitch",
		Name:   "Pitch & Review",
		Sections: []Section{
			{Key: "summary", Label: "Summary", Weight: 50, Fields: []Field{
				{Path: "summary.oneLiner", Kind: KindText},
				{Path: "summary.story", Kind: KindText},
			}},
			{Key: "ask", Label: "Ask", Weight: 25, Fields: []Field{
				{Path: "ask.amount", Kind: KindNumber},
				{Path: "ask.use", Kind: KindText},
			}},
			{Key: "appendix", Label: "Appendix", Weight: 25, Fields: []Field{
				{Path: "appendix.links", Kind: KindList},
				{Path: "appendix.attachments", Kind: KindList},
			}},
		},
	},
}

var stepsByNumber = func() map[int]*StepDefinition {
	index := make(map[int]*StepDefinition, len(steps))
	for _, step := range steps {
		index[step.Number] = step
	}
	return index
}()

// Step returns the definition for a step number, or nil if the number is
// outside the fixed sequence.
func Step(number int) *StepDefinition {
	return stepsByNumber[number]
}

// Steps returns the full ordered sequence.
func Steps() []*StepDefinition {
	return steps
}

// TotalSteps is the length of the fixed sequence.
func TotalSteps() int {
	return len(steps)
}
