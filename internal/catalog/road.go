package catalog

// RoadConditions returns the built-in road conditions survey.
func RoadConditions() *Catalog {
	return MustNew([]Question{
		{
			ID:      1,
			Text:    "How would you rate the overall condition of roads in your area?",
			Options: []string{"Excellent", "Good", "Fair", "Poor", "Very Poor"},
		},
		{
			ID:      2,
			Text:    "Which type of road damage is most common in your locality?",
			Options: []string{"Potholes", "Cracks", "Uneven Surface", "Poor Drainage", "Missing Signage"},
		},
		{
			ID:      3,
			Text:    "How frequently do you encounter potholes during your daily commute?",
			Options: []string{"Never", "Rarely", "Sometimes", "Often", "Always"},
		},
		{
			ID:      4,
			Text:    "What is the impact of poor road conditions on your daily life?",
			Options: []string{"No Impact", "Minor Inconvenience", "Moderate Delays", "Major Disruption", "Severe Problems"},
		},
		{
			ID:      5,
			Text:    "Have you reported road issues to authorities before?",
			Options: []string{"Yes, multiple times", "Yes, once", "No, but plan to", "No, don't know how", "No, don't think it helps"},
		},
	})
}
