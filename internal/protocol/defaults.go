package protocol

// DefaultProtocols returns the built-in symptom, emergency and policy rules.
func DefaultProtocols() []Protocol {
	return []Protocol{
		{
			Name:           "Fever Management",
			Category:       "symptom",
			Keywords:       []string{"fever", "temperature", "hot", "burning up"},
			TriggerPhrases: []string{"have fever", "have a fever", "running fever", "running a fever", "got a fever"},
			Description:    "Protocol for managing fever symptoms",
			Template: `For fever management:
- If temp > 103°F (39.4°C) or fever lasts > 3 days, see a doctor immediately
- Stay hydrated, drink plenty of water
- Rest and avoid strenuous activity
- You can take paracetamol (per package instructions) if needed
- Monitor temperature regularly
- Seek immediate care if you have: severe headache, difficulty breathing, chest pain, or confusion`,
			Priority: 8,
			Active:   true,
		},
		{
			Name:           "Stomach Ache",
			Category:       "symptom",
			Keywords:       []string{"stomach", "tummy", "abdomen", "belly", "pain", "ache"},
			TriggerPhrases: []string{"stomach pain", "stomach ache", "tummy ache"},
			Description:    "Protocol for stomach pain",
			Template: `For stomach discomfort:
- Eat light, bland foods (rice, banana, toast)
- Stay hydrated with water or ORS
- Avoid spicy, oily, or heavy foods
- Rest and don't eat for 2-3 hours if nauseous
- See a doctor if: severe pain, blood in stool, pain lasts > 2 days, or you have fever`,
			Priority: 7,
			Active:   true,
		},
		{
			Name:           "Headache",
			Category:       "symptom",
			Keywords:       []string{"headache", "head pain", "migraine"},
			TriggerPhrases: []string{"have a headache", "have headache", "and headache", "head is paining", "bad headache"},
			Description:    "Protocol for headaches",
			Template: `For headache relief:
- Rest in a quiet, dark room
- Stay hydrated
- Apply cold/warm compress to forehead
- Can take paracetamol if needed
- Avoid screens and bright lights
- Seek immediate care if: sudden severe headache, with fever and stiff neck, after head injury, or with vision changes`,
			Priority: 6,
			Active:   true,
		},
		{
			Name:           "Emergency Symptoms",
			Category:       "emergency",
			Keywords:       []string{"chest pain", "difficulty breathing", "unconscious", "bleeding", "severe"},
			TriggerPhrases: []string{"can't breathe", "chest pain", "severe bleeding"},
			Description:    "Emergency situation protocol",
			Template: `⚠️ This sounds like a medical emergency. Please seek immediate medical attention:
- Call emergency services (102/108) or go to nearest hospital
- Do NOT wait or try home remedies
- If chest pain: sit down, stay calm, take aspirin if available (unless allergic)
- If breathing difficulty: sit upright, stay calm, loosen tight clothing
- Have someone stay with you`,
			Priority: 10,
			Active:   true,
		},
		{
			Name:           "Refund Policy",
			Category:       "policy",
			Keywords:       []string{"refund", "money back", "cancel", "subscription"},
			TriggerPhrases: []string{"want refund", "want a refund", "cancel subscription", "cancel my subscription"},
			Description:    "Refund and cancellation policy",
			Template: `Our refund policy:
- You can cancel subscription anytime from settings
- Refunds available within 7 days of purchase
- Contact support@disha.health with your username
- Refunds processed within 5-7 business days
- For specific queries, I can connect you with our support team`,
			Priority: 5,
			Active:   true,
		},
	}
}
