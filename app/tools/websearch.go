package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ragagent/types"
)

const defaultWebScore = 0.7

// TavilySearch calls the Tavily search REST API.
type TavilySearch struct {
	apiURL string
	apiKey string
	client *http.Client
}

type tavilyRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResult struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Content string   `json:"content"`
	Score   *float64 `json:"score"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

func NewTavilySearch(apiURL, apiKey string) *TavilySearch {
	return &TavilySearch{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns web evidence. Results without a provider score count as 0.7.
func (t *TavilySearch) Search(ctx context.Context, query string, topK int, minScore float64) ([]types.EvidenceRecord, error) {
	body, err := json.Marshal(tavilyRequest{Query: query, MaxResults: topK})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tavily returned status %d, body: %s", resp.StatusCode, string(b))
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	records := make([]types.EvidenceRecord, 0, len(out.Results))
	for _, r := range out.Results {
		score := defaultWebScore
		if r.Score != nil {
			score = *r.Score
		}
		if score < minScore || r.URL == "" {
			continue
		}
		records = append(records, types.EvidenceRecord{
			ID:     r.URL,
			Text:   r.Content,
			Source: r.URL,
			Title:  r.Title,
			Score:  score,
			Origin: types.OriginWeb,
		})
		if len(records) == topK {
			break
		}
	}
	return records, nil
}
