// Package advisory turns a numeric AQI forecast into short plain-language
// guidance, using an OpenAI chat model when a key is configured.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/airwatch/internal/aqi"
	"github.com/lox/airwatch/internal/forecast"
	"github.com/lox/airwatch/internal/htmlutil"
)

const defaultModel = openai.ChatModelGPT4oMini

const systemPrompt = "You write short public air-quality advisories. " +
	"Use two or three plain sentences, no lists, no markdown. " +
	"Name the worst day and who should limit outdoor activity."

// Advisor writes advisories with an OpenAI chat model.
type Advisor struct {
	client openai.Client
	model  openai.ChatModel
}

func NewAdvisor(apiKey string, opts ...option.RequestOption) (*Advisor, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Advisor{
		client: openai.NewClient(opts...),
		model:  defaultModel,
	}, nil
}

// Write returns advisory text for the forecast.
func (a *Advisor) Write(ctx context.Context, city string, result *forecast.Result) (string, error) {
	if result == nil || len(result.Points) == 0 {
		return "", errors.New("empty forecast")
	}

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(city, result)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	text := htmlutil.PlainText(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion returned")
	}
	log.Printf("advisory: generated %d chars for %s", len(text), city)
	return text, nil
}

// BuildPrompt lists the forecast days for the model.
func BuildPrompt(city string, result *forecast.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "AQI forecast for %s after %s:\n", city, result.LastObserved)
	for _, p := range result.Points {
		fmt.Fprintf(&b, "%s: %.0f (%s)\n", p.Date, p.AQI, p.Category)
	}
	return b.String()
}

// Fallback builds a rule-based advisory from the worst forecast day.
func Fallback(result *forecast.Result) string {
	if result == nil || len(result.Points) == 0 {
		return ""
	}
	worst := result.Points[0]
	for _, p := range result.Points[1:] {
		if p.AQI > worst.AQI {
			worst = p
		}
	}

	lead := fmt.Sprintf("Air quality is expected to peak at %.0f (%s) on %s.", worst.AQI, worst.Category, worst.Date)
	switch {
	case worst.Category.Severity() >= aqi.VeryPoor.Severity():
		return lead + " Everyone should avoid prolonged outdoor exertion; sensitive groups should stay indoors."
	case worst.Category.Severity() >= aqi.Moderate.Severity():
		return lead + " People with heart or lung conditions, children and older adults should reduce outdoor exertion."
	default:
		return lead + " No precautions are needed."
	}
}
