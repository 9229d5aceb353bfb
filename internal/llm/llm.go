package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/joescharf/portfolio-sync/internal/models"
)

// DefaultMaxInputChars bounds how much CV text is sent for analysis.
const DefaultMaxInputChars = 10000

var (
	ErrEmptyCompletion  = errors.New("llm: completion has no content")
	ErrMalformedPayload = errors.New("llm: malformed JSON payload")
)

// Completer sends a single user prompt and returns the text the model
// produced. Implementations unwrap their provider's response envelope.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Analyzer turns CV text and repository metadata into structured results.
type Analyzer struct {
	c             Completer
	maxInputChars int
}

// NewAnalyzer creates an Analyzer. maxInputChars <= 0 uses DefaultMaxInputChars.
func NewAnalyzer(c Completer, maxInputChars int) *Analyzer {
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	return &Analyzer{c: c, maxInputChars: maxInputChars}
}

// buildSkillsPrompt constructs the recruiter prompt for skill extraction.
func buildSkillsPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString(`You are a professional technical recruiter.
Analyze the CV text and extract technical skills.
Output ONLY JSON in this format:
{
  "stacks": [{"name": "React", "icon": "Atom"}],
  "tools": [{"name": "Docker", "icon": "Container"}]
}

Rules:
- "stacks" holds programming languages, frameworks and databases
- "tools" holds DevOps, cloud platforms, AI tools, libraries and design software
- "icon" MUST be a valid PascalCase Lucide icon name
- "name" must be at most 30 characters
- Return valid JSON only, no markdown fencing or explanation

CV TEXT:
`)
	sb.WriteString(text)
	return sb.String()
}

// buildProjectPrompt constructs the architect prompt for one repository.
func buildProjectPrompt(repo models.Repository) string {
	var sb strings.Builder
	sb.WriteString("You are a Senior Architect. Analyze this GitHub repository and generate technical metadata.\n")
	sb.WriteString("REPO: ")
	sb.WriteString(repo.Name)
	sb.WriteString("\nDESCRIPTION: ")
	sb.WriteString(repo.Description)
	sb.WriteString("\nTOPICS: ")
	sb.WriteString(strings.Join(repo.Topics, ", "))
	sb.WriteString(`

Output ONLY JSON in this format:
{
  "description": "Short recruiter-friendly summary (2 lines)",
  "tags": ["React", "Go", "Redis"],
  "complexityScore": 1-10 integer,
  "architecture": "Monolith/Serverless/etc",
  "difficulty": "Easy/Medium/Hard"
}`)
	return sb.String()
}

// AnalyzeSkills categorizes the skills found in CV text. Only the first
// maxInputChars characters are sent.
func (a *Analyzer) AnalyzeSkills(ctx context.Context, text string) (*models.SkillsDocument, error) {
	prompt := buildSkillsPrompt(truncate(text, a.maxInputChars))
	raw, err := a.c.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyze skills: %w", err)
	}
	var doc models.SkillsDocument
	if err := decodePayload(raw, &doc); err != nil {
		return nil, fmt.Errorf("analyze skills: %w", err)
	}
	return &doc, nil
}

// AnalyzeProject derives portfolio metadata for repo.
func (a *Analyzer) AnalyzeProject(ctx context.Context, repo models.Repository) (*models.ProjectAnalysis, error) {
	raw, err := a.c.Complete(ctx, buildProjectPrompt(repo))
	if err != nil {
		return nil, fmt.Errorf("analyze project %s: %w", repo.Name, err)
	}
	var pa models.ProjectAnalysis
	if err := decodePayload(raw, &pa); err != nil {
		return nil, fmt.Errorf("analyze project %s: %w", repo.Name, err)
	}
	return &pa, nil
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// decodePayload parses the model's JSON text into out.
func decodePayload(raw string, out any) error {
	text := stripFences(raw)
	if text == "" {
		return ErrEmptyCompletion
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %v\nraw response: %s", ErrMalformedPayload, err, clip(text, 500))
	}
	return nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
