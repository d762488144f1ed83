package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultRole is used when a briefing request names no role
const DefaultRole = "flight dispatcher"

// Interpretation is the structured answer for one notice
type Interpretation struct {
	ShortDescription string `json:"notamShortDescription"`
	Description      string `json:"notamDescription"`
	Category         string `json:"category"`
	ImpactedRoles    string `json:"impactedRole"`
}

// BriefingLine is one interpreted notice fed into a briefing
type BriefingLine struct {
	Location string
	Summary  string
}

// Summarizer builds prompts and parses answers on top of a Completer
type Summarizer struct {
	completer     Completer
	model         string
	briefingModel string
}

// New creates a summarizer. An empty briefingModel reuses model.
func New(completer Completer, model, briefingModel string) *Summarizer {
	if briefingModel == "" {
		briefingModel = model
	}
	return &Summarizer{completer: completer, model: model, briefingModel: briefingModel}
}

// Model is the model interpretations are stored under
func (s *Summarizer) Model() string {
	return s.model
}

const interpretPrompt = `Extract and interpret the key information of this NOTAM (Notice to Airmen).
Answer with a JSON object with exactly these string fields:
"notamShortDescription": the most important information summarized in one or two sentences;
"notamDescription": an interpretation of the NOTAM;
"category": a category such as Opening Hours, Airport maintenance, Airspace closure, Obstacle;
"impactedRole": comma-separated roles that should be informed (Pilot, Flight Dispatcher, ATC).
NOTAM: %s`

// Interpret asks the model to explain one notice
func (s *Summarizer) Interpret(ctx context.Context, text string) (Interpretation, error) {
	if strings.TrimSpace(text) == "" {
		return Interpretation{}, fmt.Errorf("text cannot be empty")
	}

	out, err := s.completer.Complete(ctx, s.model, fmt.Sprintf(interpretPrompt, text), true)
	if err != nil {
		return Interpretation{}, fmt.Errorf("interpret: %w", err)
	}

	var in Interpretation
	if err := json.Unmarshal([]byte(extractJSON(out)), &in); err != nil {
		return Interpretation{}, fmt.Errorf("parse interpretation: %w", err)
	}
	if in.ShortDescription == "" {
		return Interpretation{}, fmt.Errorf("interpretation missing notamShortDescription")
	}
	return in, nil
}

// Brief writes a markdown briefing for role from interpreted notices
func (s *Summarizer) Brief(ctx context.Context, role string, lines []BriefingLine) (string, error) {
	if role == "" {
		role = DefaultRole
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("no interpreted notices to brief")
	}

	var notices []string
	for _, l := range lines {
		notices = append(notices, fmt.Sprintf("Airport: %s. NOTAM: %s\n", l.Location, l.Summary))
	}

	prompt := fmt.Sprintf("You are tasked with providing a briefing for a %[1]s based solely on the provided NOTAMs. "+
		"Extract and present only the information that is directly relevant to the responsibilities of a %[1]s. "+
		"Prioritize the most critical information and keep the briefing concise. "+
		"Begin the briefing with the phrase 'Here is your briefing' and format it in Markdown. "+
		"Use the following NOTAMs as your source of information:\n%[2]s.", role, strings.Join(notices, ";\n"))

	out, err := s.completer.Complete(ctx, s.briefingModel, prompt, false)
	if err != nil {
		return "", fmt.Errorf("brief: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Health checks both models are reachable
func (s *Summarizer) Health(ctx context.Context) error {
	if err := s.completer.Health(ctx, s.model); err != nil {
		return err
	}
	if s.briefingModel != s.model {
		return s.completer.Health(ctx, s.briefingModel)
	}
	return nil
}

// extractJSON trims prose or code fences around a JSON object
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
