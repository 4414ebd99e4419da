package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coinsight/internal/domain"
)

// sentimentView is the slice of the sentiment payload the dashboard renders.
type sentimentView struct {
	Symbol     string                 `json:"symbol"`
	Score      float64                `json:"score"`
	Confidence float64                `json:"confidence"`
	Direction  domain.SignalDirection `json:"direction"`
	Risk       int                    `json:"risk"`
	ItemCount  int                    `json:"item_count"`
	Timestamp  time.Time              `json:"ts"`
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *apiClient) fetchPrices() ([]*domain.PriceSnapshot, error) {
	var payload struct {
		Prices []*domain.PriceSnapshot `json:"prices"`
	}
	if err := c.getJSON("/api/prices", &payload); err != nil {
		return nil, err
	}
	return payload.Prices, nil
}

func (c *apiClient) fetchSignals(limit int) ([]*domain.Signal, error) {
	var payload struct {
		Signals []*domain.Signal `json:"signals"`
	}
	if err := c.getJSON(fmt.Sprintf("/api/signals?limit=%d", limit), &payload); err != nil {
		return nil, err
	}
	return payload.Signals, nil
}

func (c *apiClient) fetchSentiment(symbol string) (*sentimentView, error) {
	var payload sentimentView
	err := c.getJSON("/api/sentiment/"+symbol, &payload)
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *apiClient) getJSON(path string, dst any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

var errNotFound = fmt.Errorf("not found")
