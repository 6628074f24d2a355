package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"busease/internal/domain"
)

// TextGenerator answers a free-form prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-1.5-flash"
)

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

func NewGeminiClient(apiKey, model, baseURL string) *GeminiClient {
	if model == "" {
		model = defaultGeminiModel
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		CandidateCount  int     `json:"candidateCount"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", domain.ExternalServiceError{Service: "gemini", Err: fmt.Errorf("api key not configured")}
	}

	var reqBody geminiRequest
	reqBody.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	reqBody.GenerationConfig.CandidateCount = 1
	reqBody.GenerationConfig.MaxOutputTokens = 400
	reqBody.GenerationConfig.Temperature = 0.2

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.BaseURL, url.PathEscape(c.Model), url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", domain.ExternalServiceError{Service: "gemini", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", domain.ExternalServiceError{Service: "gemini", Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.ExternalServiceError{Service: "gemini", Err: err}
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	texts := make([]string, 0, len(out.Candidates[0].Content.Parts))
	for _, p := range out.Candidates[0].Content.Parts {
		texts = append(texts, p.Text)
	}
	return strings.TrimSpace(strings.Join(texts, " ")), nil
}

// policyPrompt frames the generative fallback. %s is the user's question.
const policyPrompt = `You are the BusEase customer support assistant for a Malaysian intercity bus booking website.

About BusEase:
- Users search buses by origin, destination and travel date on the home page, then view seats and book on the schedules page.
- Booked seats are shown in red and available seats in green. After payment a ticket is emailed to the user.
- You cannot book tickets for customers.
- Cancellation: from "My Bookings" or by typing "cancel booking" in this chat. Bookings can be cancelled up to 1 day before departure. Cancellation applies to the whole booking, never a single seat. Refunds go back to the original card within 5-7 business days.
- Profile picture, email and phone can be edited from the profile page. Username and password changes need customer support.
- Only credit and debit cards are accepted. Payments are processed securely.
- Seat, time or bus changes are not available through self service.
- No refunds or transfers for missed buses unless the user has a valid reason; ask them to contact support.
- Support: busease@gmail.com, phone 09-123654987.

Rules:
- Only answer within the context of BusEase services.
- For vague messages ("okay", "wow") answer politely and ask if they need anything else without introducing yourself again.
- If the user mentions a Malaysian place you do not recognise or that looks misspelled, ask them to check the location name.
- Keep steps short and simple.

User's Question: "%s"

Give a relevant, concise answer that follows BusEase policies.`
