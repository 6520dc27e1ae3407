package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/scimuse/scimuse/internal/infrastructure/resilience"
)

// Gateway is the process-wide model backend client. Every agent reaches
// models through its three calls; backend response shapes never leak past
// this package.
type Gateway struct {
	client      *openai.Client
	embedModel  string
	visionModel string
	genModel    string

	executor *resilience.Executor
	limiter  *rate.Limiter
}

type Options struct {
	BaseURL     string
	APIKey      string
	EmbedModel  string
	VisionModel string
	GenModel    string

	// RatePerSecond bounds outbound backend calls; zero disables limiting.
	RatePerSecond float64
	Resilience    resilience.Config
}

func New(opts Options) *Gateway {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	return &Gateway{
		client:      openai.NewClientWithConfig(cfg),
		embedModel:  opts.EmbedModel,
		visionModel: opts.VisionModel,
		genModel:    opts.GenModel,
		executor:    resilience.NewExecutor(opts.Resilience),
		limiter:     limiter,
	}
}

func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		text = "empty"
	}

	var vector []float32
	err := g.call(ctx, "embed", func(ctx context.Context) error {
		resp, err := g.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(g.embedModel),
			Input: []string{text},
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("empty embedding response")
		}
		vector = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (g *Gateway) Caption(ctx context.Context, imageRef, contextPrompt string) (string, error) {
	raw, err := os.ReadFile(imageRef)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", imageRef, err)
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	var out string
	err = g.call(ctx, "caption", func(ctx context.Context) error {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.visionModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type:     openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
						},
						{
							Type: openai.ChatMessagePartTypeText,
							Text: contextPrompt,
						},
					},
				},
			},
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty caption response")
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.call(ctx, "generate", func(ctx context.Context) error {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.genModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty generation response")
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (g *Gateway) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	wrapped := func(ctx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return fn(ctx)
	}
	err := g.executor.Execute(ctx, operation, wrapped, classifyBackendError)
	return normalizeBackendError(operation, err)
}
