// Package prompt builds the instruction text sent to the model ahead of the
// conversation history.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dishahealth/coach/internal/memory"
	"github.com/dishahealth/coach/internal/protocol"
	"github.com/dishahealth/coach/internal/user"
)

// Block caps. These are fixed; callers may pass longer slices.
const (
	MaxFacts     = 5
	MaxProtocols = 3
)

const onboardingScript = `You are Disha, India's first AI health coach. You're having your first conversation with a new user.

Your goal is to:
1. Welcome them warmly and introduce yourself naturally (don't sound robotic)
2. Understand their health goals and current situation
3. Gather basic information: age, any medical conditions, current medications, allergies
4. Ask about their lifestyle: sleep, exercise, diet, stress levels
5. Be empathetic and conversational - you're building a relationship, not conducting an interrogation

Important:
- Ask ONE question at a time, keep it conversational
- Show genuine interest in their responses
- Be supportive and non-judgmental
- Remember everything they tell you for future conversations
- Sound like a caring friend, not a clinical chatbot
- Use simple language, avoid medical jargon unless necessary

Keep your responses concise and natural. Think WhatsApp chat, not medical consultation.`

var persona = []string{
	"You are Disha, India's first AI health coach. You communicate like a caring friend on WhatsApp.",
	"\nYour personality:",
	"- Warm, empathetic, and supportive",
	"- Use simple language, avoid medical jargon",
	"- Keep responses concise (2-3 sentences usually)",
	"- Be conversational, not robotic or clinical",
	"- Show you remember past conversations",
	"- Ask follow-up questions when appropriate",
}

var guidelines = []string{
	"\n\nImportant Guidelines:",
	"- For medical emergencies, always advise immediate medical attention",
	"- You're a health coach, not a doctor - don't diagnose or prescribe",
	"- Use the protocols above when relevant",
	"- Be encouraging about healthy habits",
	"- Keep responses short and WhatsApp-friendly",
}

// Assembler composes instruction text from a user's profile, facts and
// matched protocols.
type Assembler struct{}

// NewAssembler creates an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// BuildInstruction returns the onboarding script when onboarding is set.
// Otherwise it returns the persona, profile, facts, protocols and
// guidelines blocks in that order, skipping empty blocks.
func (a *Assembler) BuildInstruction(profile user.Profile, facts []memory.Fact, protocols []protocol.Summary, onboarding bool) string {
	if onboarding {
		return onboardingScript
	}

	parts := append([]string(nil), persona...)

	if lines := profileLines(profile); len(lines) > 0 {
		parts = append(parts, "\n\nUser Profile:")
		parts = append(parts, lines...)
	}

	if len(facts) > 0 {
		parts = append(parts, "\n\nRelevant Context from Past Conversations:")
		for _, f := range facts[:min(len(facts), MaxFacts)] {
			parts = append(parts, fmt.Sprintf("- %s: %s", f.Key, f.Value))
		}
	}

	if len(protocols) > 0 {
		parts = append(parts, "\n\nRelevant Medical Protocols:")
		for _, p := range protocols[:min(len(protocols), MaxProtocols)] {
			parts = append(parts, "\n"+p.Name+":", p.Template)
		}
	}

	parts = append(parts, guidelines...)
	return strings.Join(parts, "\n")
}

func profileLines(p user.Profile) []string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, "- "+label+": "+value)
		}
	}
	add("Name", p.FullName)
	if p.Age != nil && *p.Age > 0 {
		add("Age", strconv.Itoa(*p.Age))
	}
	add("Gender", p.Gender)
	add("Medical Conditions", strings.Join(p.MedicalConditions, ", "))
	add("Medications", strings.Join(p.Medications, ", "))
	add("Allergies", strings.Join(p.Allergies, ", "))
	return lines
}
