package provider

import (
	"context"
	"strings"
	"sync/atomic"
)

// DemoProvider answers from canned keyword replies without any API call.
type DemoProvider struct {
	next atomic.Uint64
}

// NewDemoProvider creates a demo provider.
func NewDemoProvider() *DemoProvider {
	return &DemoProvider{}
}

func (p *DemoProvider) Name() string  { return TypeDemo }
func (p *DemoProvider) Model() string { return "demo-mock" }

const (
	demoIntro    = "Hi! I'm Disha, your AI health coach. 👋 How can I help you today?"
	demoGreeting = "Hello! 👋 I'm Disha, your AI health coach. I'm here to help you with health questions and wellness guidance. How are you feeling today?"
	demoFever    = "I'm sorry to hear you have a fever. For fever management:\n\n- If temp > 103°F or lasts > 3 days, see a doctor\n- Stay hydrated and rest\n- You can take paracetamol as directed\n- Monitor your temperature regularly\n\nHow long have you had this fever?"
	demoHeadache = "Headaches can be tough! Here's what might help:\n\n- Rest in a quiet, dark room\n- Stay hydrated - drink plenty of water\n- Apply a cold compress to your forehead\n- Avoid screens and bright lights\n\nIf it persists or gets worse, please see a doctor. Is there anything else bothering you?"
	demoStomach  = "For stomach discomfort, I'd recommend:\n\n- Eat light, bland foods like rice and bananas\n- Stay hydrated with water or ORS\n- Avoid spicy and oily foods\n- Rest for a bit\n\nIf pain is severe or persists, please consult a doctor. When did this start?"
	demoThanks   = "You're welcome! I'm always here to help. Is there anything else you'd like to know about your health?"
	demoQuestion = "That's a great question! While I'm running in demo mode right now, in the full version I'd provide personalized health guidance based on your profile and history. Would you like to tell me more about what's concerning you?"
)

var demoFallbacks = []string{
	"I understand. Can you tell me more about what you're experiencing?",
	"Thanks for sharing that with me. How long has this been going on?",
	"I see. Are there any other symptoms you're noticing?",
	"Got it. On a scale of 1-10, how would you rate your discomfort?",
	"That's helpful to know. Have you experienced anything like this before?",
}

var demoRules = []struct {
	words []string
	reply string
}{
	{[]string{"fever", "temperature", "hot"}, demoFever},
	{[]string{"headache", "head pain", "migraine"}, demoHeadache},
	{[]string{"stomach", "tummy", "abdomen"}, demoStomach},
	{[]string{"hi", "hello", "hey"}, demoGreeting},
	{[]string{"thank", "thanks"}, demoThanks},
	{[]string{"?"}, demoQuestion},
}

// Generate replies to the last message by keyword.
func (p *DemoProvider) Generate(_ context.Context, req *Request) (*Response, error) {
	reply := p.reply(req.Messages)
	n := len(reply) / 4
	return &Response{
		Content: reply,
		Model:   p.Model(),
		Usage:   Usage{CompletionTokens: n, TotalTokens: n},
		Demo:    true,
	}, nil
}

func (p *DemoProvider) reply(msgs []Message) string {
	if len(msgs) == 0 {
		return demoIntro
	}
	last := strings.ToLower(msgs[len(msgs)-1].Content)
	for _, rule := range demoRules {
		for _, w := range rule.words {
			if strings.Contains(last, w) {
				return rule.reply
			}
		}
	}
	i := p.next.Add(1) - 1
	return demoFallbacks[i%uint64(len(demoFallbacks))]
}
