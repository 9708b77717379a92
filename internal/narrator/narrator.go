// Package narrator adds an optional atmospheric line under the current
// scene. It never influences game state.
package narrator

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

//go:embed prompts/narrate_scene.txt
var narrateScenePrompt string

var narrateTmpl = template.Must(template.New("narrate_scene").Parse(narrateScenePrompt))

// Model is the part of *genai.GenerativeModel the narrator uses.
type Model interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Scene is the input for one narration.
type Scene struct {
	Name    string
	Text    string
	Options []string
	Ending  bool
	Victory bool
}

type Narrator struct {
	client *genai.Client
	model  Model
}

// New connects to Gemini. An empty apiKey returns a nil narrator, which is
// valid and does nothing.
func New(ctx context.Context, apiKey string) (*Narrator, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Narrator{client: client, model: client.GenerativeModel("gemini-2.5-flash")}, nil
}

// WithModel wraps an existing model.
func WithModel(m Model) *Narrator {
	return &Narrator{model: m}
}

func (n *Narrator) Close() {
	if n != nil && n.client != nil {
		n.client.Close()
	}
}

// Enabled reports whether narration will produce anything.
func (n *Narrator) Enabled() bool {
	return n != nil && n.model != nil
}

// Narrate returns one short line of flavor text for s.
func (n *Narrator) Narrate(ctx context.Context, s Scene) (string, error) {
	if !n.Enabled() || strings.TrimSpace(s.Text) == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := narrateTmpl.Execute(&buf, s); err != nil {
		return "", err
	}

	resp, err := n.model.GenerateContent(ctx, genai.Text(buf.String()))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content returned from Gemini")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response type from Gemini")
	}
	return clean(string(text)), nil
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(strings.TrimSpace(s), `"`)
}
