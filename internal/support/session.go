// Package support implements the conversational assistant session: a short
// dialogue context, a deterministic pre-model risk check, and role-conditioned
// replies produced through the model gateway.
package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heartmatch/heartmatch/internal/gateway"
)

// ErrSessionClosed is returned by Submit after Close.
var ErrSessionClosed = errors.New("session is closed")

// Role conditions the assistant's framing.
type Role string

const (
	RoleChild        Role = "child"
	RoleFamily       Role = "family"
	RoleSocialWorker Role = "social_worker"
	RoleGeneral      Role = "general"
)

// ParseRole maps loose user input onto a known role, defaulting to general.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "child":
		return RoleChild
	case "family":
		return RoleFamily
	case "social_worker", "social-worker", "socialworker":
		return RoleSocialWorker
	default:
		return RoleGeneral
	}
}

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one entry in the append-only session transcript.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Risk      bool      `json:"risk,omitempty"`
}

// State tracks the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingInput
	StateRiskDetected
	StateResponding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateRiskDetected:
		return "risk_detected"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Reply is what the caller renders to the end user.
type Reply struct {
	Text     string
	Risk     bool
	Degraded bool
	Model    string
}

// Config carries the session's model chain and crisis keyword overrides.
type Config struct {
	Models   []string
	Keywords []string
}

// contextTurns bounds how much transcript is replayed into each prompt.
const contextTurns = 6

// Session holds one conversation. It is owned by a single caller context; the
// internal mutex only guards against accidental concurrent Submit calls, the
// caller contract is still one in-flight Submit at a time.
type Session struct {
	id         string
	generator  gateway.Generator
	classifier *RiskClassifier
	models     []string
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	state State
	turns []Turn
}

// NewSession opens a conversation session. The session starts awaiting input.
func NewSession(generator gateway.Generator, cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:         uuid.NewString(),
		generator:  generator,
		classifier: NewRiskClassifier(cfg.Keywords),
		models:     cfg.Models,
		logger:     logger,
		now:        time.Now,
		state:      StateAwaitingInput,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turns returns a copy of the transcript.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Submit appends the user's turn, runs the risk classifier, and produces the
// assistant reply. Risk-flagged input short-circuits to the fixed safety
// message without touching the gateway. Gateway failures degrade to a fixed
// role-appropriate message rather than an error.
func (s *Session) Submit(ctx context.Context, text string, role Role) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return Reply{}, ErrSessionClosed
	}

	keyword, risky := s.classifier.Detect(text)

	s.turns = append(s.turns, Turn{
		Speaker:   SpeakerUser,
		Role:      role,
		Text:      text,
		Timestamp: s.now().UTC(),
		Risk:      risky,
	})

	if risky {
		s.state = StateRiskDetected
		s.logger.Warn("crisis language detected, returning safety resources",
			zap.String("session_id", s.id),
			zap.String("keyword", keyword),
		)

		reply := Reply{Text: SafetyMessage, Risk: true}
		s.appendAssistant(reply, role)
		s.state = StateAwaitingInput
		return reply, nil
	}

	s.state = StateResponding
	prompt := s.buildPrompt(text, role)

	result, err := s.generator.GenerateWithFallback(ctx, prompt, s.models)
	if err != nil {
		s.logger.Warn("assistant reply degraded, gateway unavailable",
			zap.String("session_id", s.id),
			zap.Error(err),
		)

		reply := Reply{Text: degradedMessage(role), Degraded: true}
		s.appendAssistant(reply, role)
		s.state = StateAwaitingInput
		return reply, nil
	}

	reply := Reply{Text: strings.TrimSpace(result.Text), Model: result.Model}
	if reply.Text == "" {
		reply.Text = degradedMessage(role)
		reply.Degraded = true
	}
	s.appendAssistant(reply, role)
	s.state = StateAwaitingInput
	return reply, nil
}

// Close is terminal: the turn history is discarded and further Submit calls
// fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	s.turns = nil
}

func (s *Session) appendAssistant(reply Reply, role Role) {
	s.turns = append(s.turns, Turn{
		Speaker:   SpeakerAssistant,
		Role:      role,
		Text:      reply.Text,
		Timestamp: s.now().UTC(),
		Risk:      reply.Risk,
	})
}

func (s *Session) buildPrompt(text string, role Role) string {
	var b strings.Builder
	b.WriteString(systemFraming(role))
	b.WriteString("\n\n")

	// Replay a short window of prior turns so the assistant keeps context.
	start := len(s.turns) - 1 - contextTurns
	if start < 0 {
		start = 0
	}
	for _, turn := range s.turns[start : len(s.turns)-1] {
		speaker := "User"
		if turn.Speaker == SpeakerAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Text)
	}

	fmt.Fprintf(&b, "User: %s\n\nAssistant:", text)
	return b.String()
}

func systemFraming(role Role) string {
	switch role {
	case RoleChild:
		return "You are a warm, caring counselor speaking with a child who may be looking for a new home. " +
			"Be gentle, encouraging, and age-appropriate. Use simple language and be emotionally supportive. " +
			"Focus on hope, safety, and helping them feel valued and loved."
	case RoleFamily:
		return "You are a knowledgeable family counselor helping prospective adoptive and foster families. " +
			"Provide thoughtful guidance about the adoption and foster process, child needs, and family preparation. " +
			"Be encouraging while being realistic about challenges."
	case RoleSocialWorker:
		return "You are an experienced social work supervisor providing guidance to caseworkers. " +
			"Offer professional insights about child welfare, family assessment, and best practices in placement decisions."
	default:
		return "You are a compassionate assistant helping with child-family matching. " +
			"Provide helpful, empathetic responses focused on the wellbeing of children and families."
	}
}

func degradedMessage(role Role) string {
	switch role {
	case RoleChild:
		return "I'm having a little trouble thinking right now. You didn't do anything wrong. Please try again in a moment, or talk to a trusted adult nearby."
	case RoleSocialWorker:
		return "The assistant backend is currently unreachable. Your message was not processed; please retry once the inference endpoint is available."
	default:
		return "I'm having trouble connecting right now. Please try again in a moment."
	}
}
