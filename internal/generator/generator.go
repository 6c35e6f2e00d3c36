package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hypebot-ai/hypebot/internal/mentions"
)

const (
	// maxPromptItems caps how many mentions get embedded in the summary prompt.
	maxPromptItems = 10

	// maxCompletionTokens bounds the generated message length.
	maxCompletionTokens = 280

	requestTimeout = 60 * time.Second
)

const summaryPromptTemplate = `Create a factual summary (max 240 chars) of these %d HyperLiquid mentions (out of %d total):

%s

Requirements:
1. Do NOT start with "News:" or any other prefix
2. Summarize key facts from ALL posts collectively
3. Include exact numbers and figures from the posts ONLY if they are about trading, market data, or financial metrics
4. Do NOT include any post metrics (likes, views, etc.)
5. Be 100%% factual with no subjective statements
6. Add hashtag #HyperLiquid
7. Do NOT include any quotation marks in the output

Example format (without quotes):
Whale opens $450M+ BTC short position on HyperLiquid. Community discusses potential tokenization of whale positions into stablecoins. Market sentiment mixed on large trades. 📊 #HyperLiquid`

const genericPrompt = `Create a short, factual tweet (max 240 chars) about HyperLiquid DeFi:

HyperLiquid is a high-performance decentralized exchange (DEX) known for:
- Lightning-fast transactions with minimal fees
- Deep liquidity and advanced order types
- Perpetual futures with high leverage
- Accessible to all traders
- Cross-chain capabilities

Requirements:
1. Do NOT start with any prefix
2. Be factual and straight to the point
3. Include 1-2 relevant emojis
4. Add hashtag #HyperLiquid
5. Do NOT include any quotation marks in the output

Example formats (without quotes):
Platform processes trades in under 10ms with deep liquidity pools 📊 #HyperLiquid
Advanced order types now available for better trading control ⚡ #HyperLiquid`

// Config holds completion parameters for the generator.
type Config struct {
	Model       string
	Temperature float32
}

// Generator produces short promotional messages via single-turn completion
// calls. Neither operation retries; a failed call yields an error and the
// caller decides the fallback.
type Generator struct {
	client *openai.Client
	config Config
	logger *slog.Logger
}

// New creates a generator backed by the given OpenAI client.
func New(client *openai.Client, config Config, logger *slog.Logger) *Generator {
	return &Generator{
		client: client,
		config: config,
		logger: logger,
	}
}

// Summarize condenses a batch of mentions into one message. At most ten items
// are embedded in the prompt alongside the upstream total count.
func (g *Generator) Summarize(ctx context.Context, items []mentions.Mention, total int) (string, error) {
	top := items
	if len(top) > maxPromptItems {
		top = top[:maxPromptItems]
	}

	var blocks []string
	for _, item := range top {
		blocks = append(blocks, fmt.Sprintf("Post: %s\nType: %s\nSentiment: %s\nTime: %s\n",
			item.Content, item.Type, item.Sentiment, item.MentionedAt.Local().Format("1/2/2006, 3:04:05 PM")))
	}
	postsText := strings.Join(blocks, "\n---\n")

	prompt := fmt.Sprintf(summaryPromptTemplate, len(items), total, postsText)

	g.logger.Info("generating mention summary", "items", len(top), "total", total)

	return g.complete(ctx, prompt)
}

// GenericMessage produces a message from the fixed topic description. Used
// when there are no mentions or summarization failed.
func (g *Generator) GenericMessage(ctx context.Context) (string, error) {
	g.logger.Info("generating generic topic message")

	return g.complete(ctx, genericPrompt)
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	apiCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model:       g.config.Model,
		Temperature: g.config.Temperature,
		MaxTokens:   maxCompletionTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned from model %s", g.config.Model)
	}

	text := sanitize(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion from model %s", g.config.Model)
	}

	g.logger.Info("message generated", "length", len(text))

	return text, nil
}

// sanitize strips quote characters and surrounding whitespace. The prompt
// forbids quotes but models still emit them occasionally.
func sanitize(text string) string {
	text = strings.NewReplacer(`"`, "", "'", "").Replace(text)
	return strings.TrimSpace(text)
}
