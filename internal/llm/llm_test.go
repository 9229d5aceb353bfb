package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/portfolio-sync/internal/models"
	"github.com/joescharf/portfolio-sync/internal/netclient"
)

type stubCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func TestBuildSkillsPrompt(t *testing.T) {
	p := buildSkillsPrompt("Senior engineer with Go and React")

	assert.Contains(t, p, "technical recruiter")
	assert.Contains(t, p, `"stacks"`)
	assert.Contains(t, p, `"tools"`)
	assert.Contains(t, p, "PascalCase Lucide")
	assert.Contains(t, p, "at most 30 characters")
	assert.True(t, strings.HasSuffix(p, "Senior engineer with Go and React"))
}

func TestBuildProjectPrompt(t *testing.T) {
	p := buildProjectPrompt(models.Repository{
		Name:        "hex-portfolio",
		Description: "Hexagon grid site",
		Topics:      []string{"portfolio", "react"},
	})

	assert.Contains(t, p, "Senior Architect")
	assert.Contains(t, p, "REPO: hex-portfolio")
	assert.Contains(t, p, "DESCRIPTION: Hexagon grid site")
	assert.Contains(t, p, "TOPICS: portfolio, react")
	assert.Contains(t, p, `"complexityScore"`)
	assert.Contains(t, p, "Easy/Medium/Hard")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab", truncate("ab", 3))
	assert.Equal(t, "héé", truncate("hééllo", 3))
	assert.Equal(t, "xyz", truncate("xyz", 0))
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}\n", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFences(tt.in))
	}
}

func TestAnalyzeSkills(t *testing.T) {
	t.Run("decodes payload", func(t *testing.T) {
		c := &stubCompleter{reply: "```json\n" + `{"stacks":[{"name":"Go","icon":"Code"}],"tools":[{"name":"Docker","icon":"Container"}]}` + "\n```"}
		doc, err := NewAnalyzer(c, 0).AnalyzeSkills(context.Background(), "cv text")
		require.NoError(t, err)
		assert.Equal(t, []models.Skill{{Name: "Go", Icon: "Code"}}, doc.Stacks)
		assert.Equal(t, []models.Skill{{Name: "Docker", Icon: "Container"}}, doc.Tools)
	})

	t.Run("truncates input", func(t *testing.T) {
		c := &stubCompleter{reply: `{"stacks":[],"tools":[]}`}
		long := strings.Repeat("é", 12000)
		_, err := NewAnalyzer(c, 0).AnalyzeSkills(context.Background(), long)
		require.NoError(t, err)
		require.Len(t, c.prompts, 1)

		prompt := c.prompts[0]
		tail := prompt[strings.Index(prompt, "CV TEXT:\n")+len("CV TEXT:\n"):]
		assert.Equal(t, DefaultMaxInputChars, utf8.RuneCountInString(tail))
	})

	t.Run("custom limit", func(t *testing.T) {
		c := &stubCompleter{reply: `{}`}
		_, err := NewAnalyzer(c, 5).AnalyzeSkills(context.Background(), "0123456789")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(c.prompts[0], "CV TEXT:\n01234"))
	})

	t.Run("malformed payload", func(t *testing.T) {
		c := &stubCompleter{reply: `{"stacks": "React"`}
		_, err := NewAnalyzer(c, 0).AnalyzeSkills(context.Background(), "cv")
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("non-array stacks is a parse error", func(t *testing.T) {
		c := &stubCompleter{reply: `{"stacks":"React","tools":[]}`}
		_, err := NewAnalyzer(c, 0).AnalyzeSkills(context.Background(), "cv")
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("empty reply", func(t *testing.T) {
		c := &stubCompleter{reply: "  "}
		_, err := NewAnalyzer(c, 0).AnalyzeSkills(context.Background(), "cv")
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})

	t.Run("completer error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewAnalyzer(&stubCompleter{err: boom}, 0).AnalyzeSkills(context.Background(), "cv")
		assert.ErrorIs(t, err, boom)
	})
}

func TestAnalyzeProject(t *testing.T) {
	c := &stubCompleter{reply: `{"description":"A site","tags":["React"],"complexityScore":6,"architecture":"SPA","difficulty":"Medium"}`}
	pa, err := NewAnalyzer(c, 0).AnalyzeProject(context.Background(), models.Repository{Name: "site"})
	require.NoError(t, err)
	assert.Equal(t, &models.ProjectAnalysis{
		Description:     "A site",
		Tags:            []string{"React"},
		ComplexityScore: 6,
		Architecture:    "SPA",
		Difficulty:      "Medium",
	}, pa)

	c.reply = "not json"
	_, err = NewAnalyzer(c, 0).AnalyzeProject(context.Background(), models.Repository{Name: "site"})
	require.ErrorIs(t, err, ErrMalformedPayload)
	assert.Contains(t, err.Error(), "analyze project site")
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got chatRequest
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"stacks\":[]}"}}]}`))
	}))
	defer srv.Close()

	nc := netclient.New(netclient.Options{Timeout: 5 * time.Second})
	c := NewOpenAIClient(nc, srv.URL+"/openai/v1/", "gsk_test", "", DefaultTemperature)

	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"stacks":[]}`, out)

	assert.Equal(t, "/openai/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer gsk_test", gotAuth)
	assert.Equal(t, DefaultModel, got.Model)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-200",
			status: http.StatusServiceUnavailable,
			body:   `{"error":"overloaded"}`,
			check: func(t *testing.T, err error) {
				var se *netclient.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyCompletion)
			},
		},
		{
			name:   "bad envelope",
			status: http.StatusOK,
			body:   `<html>gateway</html>`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedPayload)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewOpenAIClient(netclient.New(netclient.Options{Timeout: 5 * time.Second}), srv.URL, "k", "m", 0.1)
			_, err := c.Complete(context.Background(), "p")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5-20251001",
			"content":[{"type":"text","text":"{\"tools\":[]}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}
		}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("sk-ant-test", "", srv.URL, 0.1)
	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"tools":[]}`, out)
	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "sk-ant-test", gotKey)
}

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(ProviderConfig{Provider: ProviderGroq, APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewCompleter(ProviderConfig{Provider: ProviderAnthropic, APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	_, err = NewCompleter(ProviderConfig{Provider: "openai"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown AI provider "openai"`)
}
