// Package optimizer содержит клиент внешнего LLM-сервиса, переписывающего
// резюме под вакансию. Для ядра сервиса это чёрный ящик: текст на входе,
// текст на выходе, явный таймаут на вызов.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/magabrotheeeer/cv-optimizer/internal/config"
)

const systemPrompt = "You are a professional resume writer. Rewrite the " +
	"candidate's resume so it highlights the experience most relevant to the " +
	"job posting. Keep every fact truthful, do not invent employers, dates or " +
	"skills. Answer with the rewritten resume text only."

// Client — клиент chat-completions API, совместимого с OpenAI (Groq).
type Client struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

// New создаёт клиент оптимизатора. Таймаут обязателен: наблюдаемая
// латентность LLM-вызовов — от секунд до десятков секунд.
func New(cfg config.Optimizer) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Optimize отправляет резюме и текст вакансии в LLM и возвращает
// переписанный текст резюме.
func (c *Client) Optimize(ctx context.Context, cvText, jobPosting string) (string, error) {
	const op = "optimizer.Optimize"

	userContent := "Resume:\n" + cvText
	if jobPosting != "" {
		userContent += "\n\nJob posting:\n" + jobPosting
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &buf)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices in response", op)
	}
	return chatResp.Choices[0].Message.Content, nil
}
