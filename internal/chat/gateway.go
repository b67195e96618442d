package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/identity"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/routing"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/school"
)

// Disclaimer is appended to replies for callers without a profile row.
const Disclaimer = "\n\n[Disclaimer: You were not found in backend. Please talk to admin to get full access.]"

const systemPromptPrefix = "You are an assistant with access to the following info: "

type ContextResolver interface {
	Resolve(ctx context.Context, userID string) (*school.Profile, any, error)
}

type Request struct {
	Messages []ai.Message
	Model    string
	Provider string
	Image    []byte
}

type Reply struct {
	Text     string
	Provider routing.Choice
	Grounded bool
}

// Gateway answers one stateless chat turn. It trusts the caller's provider
// field and never re-runs the keyword router.
type Gateway struct {
	resolver ContextResolver
	registry *ai.Registry
	log      *logger.Logger
}

func NewGateway(resolver ContextResolver, registry *ai.Registry, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{resolver: resolver, registry: registry, log: log}
}

func (g *Gateway) Chat(ctx context.Context, who *identity.Principal, req Request) (*Reply, error) {
	if who == nil {
		return nil, common.Unauthorized(identity.ErrInvalidToken.Error())
	}

	// 1) resolve role-scoped context
	profile, data, err := g.resolver.Resolve(ctx, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve context: %w", err)
	}

	// 2) build provider input
	msgs := req.Messages
	if profile != nil {
		sys, err := SystemPrompt(data)
		if err != nil {
			return nil, err
		}
		msgs = append([]ai.Message{{Role: ai.RoleSystem, Content: sys}}, req.Messages...)
	}

	choice := dispatchChoice(req.Provider)
	name, model, input := choice, req.Model, msgs
	switch choice {
	case routing.Perplexity:
		last := ai.LastUserMessage(msgs)
		if len(req.Image) > 0 {
			last.Image = base64.StdEncoding.EncodeToString(req.Image)
		}
		input, model = []ai.Message{last}, ""
	case routing.HuggingFace:
		input, model = []ai.Message{ai.LastUserMessage(msgs)}, ""
	}

	// 3) dispatch
	provider, err := g.registry.Get(ctx, string(name), model)
	if err != nil {
		return nil, err
	}
	text, err := provider.Chat(ctx, input)
	if err != nil {
		g.log.Warn("provider call failed", "provider", name, "user_id", who.UserID, "error", err)
		return nil, common.Upstream(err)
	}

	if profile == nil {
		text += Disclaimer
	}
	return &Reply{Text: text, Provider: name, Grounded: profile != nil}, nil
}

// SystemPrompt serializes the context object into the leading system message.
func SystemPrompt(data any) (string, error) {
	if data == nil {
		data = struct{}{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	return systemPromptPrefix + string(b), nil
}

// dispatchChoice maps the caller's provider field to a chat backend. Anything
// other than perplexity or huggingface goes to OpenAI.
func dispatchChoice(provider string) routing.Choice {
	c, ok := routing.ParseChoice(provider)
	if ok && (c == routing.Perplexity || c == routing.HuggingFace) {
		return c
	}
	return routing.OpenAI
}
