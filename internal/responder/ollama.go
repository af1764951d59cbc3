package responder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"lifeshield/internal/platform/config"
	"lifeshield/internal/session"
	"lifeshield/pkg/platform/circuit"
)

const systemPrompt = "You are InsureBot, a concise and warm assistant for LifeShield term life insurance. " +
	"Answer in two or three sentences. Never invent premium amounts or policy terms; " +
	"the application supplies all figures."

// Ollama generates replies through a local Ollama server. Calls are bounded
// by a per-request timeout, retried with exponential backoff, and guarded by
// a circuit breaker so a dead model server costs one check, not a timeout,
// per turn.
type Ollama struct {
	baseURL    string
	model      string
	maxRetries int
	client     *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger

	mu        sync.Mutex
	nextProbe time.Time
}

// probeInterval spaces out recovery probes while the circuit is open.
const probeInterval = 30 * time.Second

func NewOllama(cfg config.OllamaConfig, logger *slog.Logger) *Ollama {
	return &Ollama{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
		breaker:    circuit.New("ollama"),
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) Reply(ctx context.Context, stage session.Stage, profile session.ApplicantProfile, hint string) (string, error) {
	prompt := buildPrompt(stage, profile, hint)

	if o.breaker.IsOpen() {
		if !o.shouldProbe() {
			return "", fmt.Errorf("responder %s: circuit open", o.breaker.Name())
		}
		reply, err := o.chat(ctx, prompt)
		if err != nil {
			o.breaker.RecordFailure()
			return "", fmt.Errorf("responder probe: %w", err)
		}
		if _, change := o.breaker.RecordSuccess(); change.Closed {
			o.logger.Info("responder circuit closed", slog.String("name", o.breaker.Name()))
		}
		return reply, nil
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		reply, err := o.chat(ctx, prompt)
		if err == nil {
			o.breaker.RecordSuccess()
			return reply, nil
		}
		lastErr = err
		o.logger.Warn("responder attempt failed",
			slog.Int("attempt", attempt+1),
			slog.String("stage", stage.String()),
			slog.String("error", err.Error()))
	}

	if _, change := o.breaker.RecordFailure(); change.Opened {
		o.armProbe()
		o.logger.Warn("responder circuit opened", slog.String("name", o.breaker.Name()))
	}
	return "", fmt.Errorf("responder exhausted retries: %w", lastErr)
}

// chat calls /api/chat, falling back to the older /api/generate endpoint
// when the server predates the chat API.
func (o *Ollama) chat(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	status, payload, err := o.post(ctx, "/api/chat", body)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return o.generate(ctx, prompt)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ollama chat: status %d", status)
	}

	var resp chatResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", fmt.Errorf("ollama chat: decode: %w", err)
	}
	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		return "", fmt.Errorf("ollama chat: empty reply")
	}
	return reply, nil
}

func (o *Ollama) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  o.model,
		Prompt: systemPrompt + "\n\n" + prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	status, payload, err := o.post(ctx, "/api/generate", body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ollama generate: status %d", status)
	}

	var resp generateResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", fmt.Errorf("ollama generate: decode: %w", err)
	}
	reply := strings.TrimSpace(resp.Response)
	if reply == "" {
		return "", fmt.Errorf("ollama generate: empty reply")
	}
	return reply, nil
}

func (o *Ollama) post(ctx context.Context, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, payload, nil
}

// armProbe starts the probe window when the circuit opens.
func (o *Ollama) armProbe() {
	o.mu.Lock()
	o.nextProbe = time.Now().Add(probeInterval)
	o.mu.Unlock()
}

// shouldProbe allows one attempt per probe interval while open.
func (o *Ollama) shouldProbe() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	if now.Before(o.nextProbe) {
		return false
	}
	o.nextProbe = now.Add(probeInterval)
	return true
}

func buildPrompt(stage session.Stage, profile session.ApplicantProfile, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation stage: %s.\n", stage)
	if profile.FullName != "" {
		fmt.Fprintf(&b, "Applicant name: %s.\n", profile.FullName)
	}
	if profile.Age > 0 {
		fmt.Fprintf(&b, "Applicant age: %d.\n", profile.Age)
	}
	if hint != "" {
		fmt.Fprintf(&b, "Instruction: %s\n", hint)
	}
	b.WriteString("Write the assistant's next message.")
	return b.String()
}

func backoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << (attempt - 1)
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}
