package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parlo/internal/services"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
)

// Config captures the runtime settings required to talk to the chat model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	TimeoutSeconds int
}

// Scenario describes the roleplay the model plays during a conversation lesson.
type Scenario struct {
	AIRole          string
	Description     string
	VocabularyFocus []string
}

// Exchange is one prior user message and the model's reply, passed back as
// conversation history.
type Exchange struct {
	UserMessage string
	Reply       string
}

// Assessment is the model's reply plus its analysis of the learner's message.
type Assessment struct {
	Reply           string   `json:"reply"`
	GrammarCorrect  bool     `json:"grammar_correct"`
	VocabularyTerms []string `json:"vocabulary_terms"`
	Fluency         float64  `json:"fluency_score"`
	Sentiment       string   `json:"sentiment"`
	Raw             string   `json:"-"`
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a dialogue client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.openai.com/v1/chat/completions"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// OpeningMessage asks the model for the scenario's first line.
func (c *Client) OpeningMessage(ctx context.Context, scenario Scenario) (string, error) {
	const op = "opening message"
	if err := c.checkConfigured(op); err != nil {
		return "", err
	}
	messages := []chatMessage{
		{Role: "system", Content: buildOpeningPrompt(scenario)},
		{Role: "user", Content: "Begin the conversation."},
	}
	content, err := c.completionWithRetry(ctx, messages, op)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Reply string `json:"reply"`
	}
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return "", services.Wrap(services.ErrAIServiceUnavailable, "dialogue", op, "parse payload", err)
	}
	reply := strings.TrimSpace(parsed.Reply)
	if reply == "" {
		return "", services.Wrap(services.ErrAIServiceUnavailable, "dialogue", op, "empty reply", nil)
	}
	return reply, nil
}

// Respond sends the learner's message with the conversation so far and
// returns the model's reply plus its turn analysis.
func (c *Client) Respond(ctx context.Context, scenario Scenario, history []Exchange, userMessage string) (Assessment, error) {
	const op = "respond"
	var empty Assessment
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return empty, errors.New("dialogue respond: user message required")
	}
	if err := c.checkConfigured(op); err != nil {
		return empty, err
	}

	messages := make([]chatMessage, 0, 2*len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: buildTurnPrompt(scenario)})
	for _, exchange := range history {
		messages = append(messages, chatMessage{Role: "user", Content: exchange.UserMessage})
		if reply := strings.TrimSpace(exchange.Reply); reply != "" {
			messages = append(messages, chatMessage{Role: "assistant", Content: reply})
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})

	content, err := c.completionWithRetry(ctx, messages, op)
	if err != nil {
		return empty, err
	}

	var parsed Assessment
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return empty, services.Wrap(services.ErrAIServiceUnavailable, "dialogue", op, "parse payload", err)
	}
	parsed.Raw = content
	parsed.Reply = strings.TrimSpace(parsed.Reply)
	if parsed.Reply == "" {
		return empty, services.Wrap(services.ErrAIServiceUnavailable, "dialogue", op, "empty reply", nil)
	}
	parsed.Sentiment = strings.ToLower(strings.TrimSpace(parsed.Sentiment))
	if parsed.Fluency < 0 {
		parsed.Fluency = 0
	}
	if parsed.Fluency > 100 {
		parsed.Fluency = 100
	}
	terms := parsed.VocabularyTerms[:0]
	for _, term := range parsed.VocabularyTerms {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			terms = append(terms, term)
		}
	}
	parsed.VocabularyTerms = terms
	return parsed, nil
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "health"
	if err := c.checkConfigured(op); err != nil {
		return err
	}
	messages := []chatMessage{
		{Role: "system", Content: "You must respond with JSON only."},
		{Role: "user", Content: "Respond with {\"ok\":true}"},
	}
	content, err := c.completionWithRetry(ctx, messages, op)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return services.Wrap(services.ErrAIServiceUnavailable, "dialogue", op, "parse payload", err)
	}
	if !parsed.OK {
		return services.Wrap(services.ErrAIServiceUnavailable, "dialogue", op, "unexpected response", nil)
	}
	return nil
}

func (c *Client) checkConfigured(op string) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "dialogue", op, "api key required", nil)
	}
	return nil
}

func buildOpeningPrompt(scenario Scenario) string {
	var b strings.Builder
	writeScenarioPreamble(&b, scenario)
	b.WriteString("Open the conversation in character with one short, friendly line ")
	b.WriteString("appropriate for a language learner. ")
	b.WriteString("Respond with JSON only: {\"reply\": \"...\"}.")
	return b.String()
}

func buildTurnPrompt(scenario Scenario) string {
	var b strings.Builder
	writeScenarioPreamble(&b, scenario)
	b.WriteString("Reply in character with one or two short sentences, then assess the ")
	b.WriteString("learner's latest message. Respond with JSON only:\n")
	b.WriteString(`{"reply": "...", "grammar_correct": true, "vocabulary_terms": ["..."], "fluency_score": 0, "sentiment": "positive|neutral|negative"}`)
	b.WriteString("\ngrammar_correct reflects the learner's message; vocabulary_terms lists ")
	b.WriteString("the target vocabulary the learner actually used; fluency_score is 0-100.")
	return b.String()
}

func writeScenarioPreamble(b *strings.Builder, scenario Scenario) {
	role := strings.TrimSpace(scenario.AIRole)
	if role == "" {
		role = "conversation partner"
	}
	fmt.Fprintf(b, "You are a %s helping someone practice a new language.\n", role)
	if description := strings.TrimSpace(scenario.Description); description != "" {
		fmt.Fprintf(b, "Scenario: %s\n", description)
	}
	if len(scenario.VocabularyFocus) > 0 {
		fmt.Fprintf(b, "Encourage use of: %s\n", strings.Join(scenario.VocabularyFocus, ", "))
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("dialogue request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) completionWithRetry(ctx context.Context, messages []chatMessage, op string) (string, error) {
	payload := chatCompletionRequest{
		Model:          c.cfg.Model,
		Messages:       messages,
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.sendOnce(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", services.Wrap(services.ErrAIServiceUnavailable, "dialogue", op, "", err)
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", services.Wrap(services.ErrAIServiceUnavailable, "dialogue", op, "", sleepErr)
		}
	}
	return "", services.Wrap(services.ErrAIServiceUnavailable, "dialogue", op,
		fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

func (c *Client) sendOnce(ctx context.Context, payload chatCompletionRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("dialogue request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("dialogue request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dialogue request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("dialogue request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("dialogue request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("dialogue request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			return "", fmt.Errorf("dialogue request: model refusal: %s", refusal)
		}
	}
	return "", errors.New("dialogue request: empty choices")
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("dialogue retry: nil context")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

// DecodeModelJSON decodes JSON from a model response, stripping the code
// fences some providers wrap around payloads despite JSON-only instructions.
func DecodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return directErr
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return err
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
