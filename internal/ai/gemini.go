package ai

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements Provider using Google's Gemini models.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

// NewGeminiProvider initializes a new Gemini client.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiProvider{client: client, modelName: modelName}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	session, parts, err := p.prepare(req)
	if err != nil {
		return "", err
	}
	resp, err := session.SendMessage(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	return text, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (TextStream, error) {
	session, parts, err := p.prepare(req)
	if err != nil {
		return nil, err
	}
	return &geminiStream{it: session.SendMessageStream(ctx, parts...)}, nil
}

// prepare maps system messages to the system instruction, earlier turns to
// chat history and the final user turn to the outgoing parts.
func (p *GeminiProvider) prepare(req Request) (*genai.ChatSession, []genai.Part, error) {
	model := p.client.GenerativeModel(p.modelName)
	model.SetTemperature(req.Temperature)
	if req.JSON {
		// Force JSON response for structured parsing.
		model.ResponseMIMEType = "application/json"
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	var (
		system []string
		turns  []*genai.Content
	)
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return nil, nil, fmt.Errorf("gemini: request must end with a user message")
	}

	session := model.StartChat()
	session.History = turns[:len(turns)-1]
	return session, turns[len(turns)-1].Parts, nil
}

type geminiStream struct {
	it *genai.GenerateContentResponseIterator
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err := s.it.Next()
		if err == iterator.Done {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream error: %w", err)
		}
		if text := responseText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error { return nil }

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
