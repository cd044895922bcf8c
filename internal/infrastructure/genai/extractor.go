// Package genai reads bank charge emails with a Gemini model.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"chreosis/internal/domain/extraction"
)

const (
	DefaultModel   = "gemini-2.0-flash"
	defaultTimeout = 30 * time.Second
	// Bodies beyond this are truncated before prompting.
	maxBodyRunes = 8000
)

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Model   string
	Timeout time.Duration
	// Breaker trips after this many consecutive failures.
	MaxFailures uint32
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration
}

// Extractor implements extraction.Extractor. Model failures, unparseable
// output and an open breaker all yield a Rejected extraction.
type Extractor struct {
	gen     Generator
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewExtractor(gen Generator, cfg Config) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "genai-extractor",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &Extractor{gen: gen, timeout: cfg.Timeout, breaker: breaker, now: time.Now}
}

func (e *Extractor) Extract(ctx context.Context, body string) extraction.Extraction {
	now := e.now()

	out, err := e.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return e.gen.Generate(ctx, buildPrompt(body))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("extraction service unavailable: %w", err)
		}
		log.Warn().Err(err).Msg("Email extraction failed")
		return extraction.RejectedFrom(err, now)
	}

	ext, err := extraction.Parse([]byte(cleanModelJSON(out.(string))), now)
	if err != nil {
		log.Warn().Err(err).Msg("Model returned an unusable extraction")
		return extraction.RejectedFrom(err, now)
	}
	return ext
}

func buildPrompt(body string) string {
	if r := []rune(body); len(r) > maxBodyRunes {
		body = string(r[:maxBodyRunes])
	}

	return "Eres un asistente especializado en extraer información financiera de correos electrónicos.\n\n" +
		"Analiza el siguiente correo y extrae en formato JSON:\n" +
		"- \"Monto\": el valor numérico del gasto, sin separadores de miles\n" +
		"- \"Fecha\": la fecha de la transacción en formato YYYY-MM-DD\n" +
		"- \"Categoria\": una categoría corta para el gasto (por ejemplo Alimentos, Transporte, Casa)\n" +
		"- \"Moneda\": código ISO de la moneda (DOP, USD, EUR, etc.)\n" +
		"- \"Lugar\": el establecimiento donde se realizó la transacción\n" +
		"- \"Status\": \"APROBADA\" si es una transacción válida, \"RECHAZADA\" si no se pudo procesar\n\n" +
		"Responde SOLO con el objeto JSON, sin bloques de código ni texto adicional.\n\n" +
		"Correo:\n" + body
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// ModelGenerator calls a Gemini model. The client reads GOOGLE_API_KEY or
// Vertex settings from the environment when no key is given.
type ModelGenerator struct {
	client *genai.Client
	model  string
}

func NewModelGenerator(ctx context.Context, apiKey, model string) (*ModelGenerator, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &ModelGenerator{client: client, model: model}, nil
}

func (g *ModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}
