package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultBaseURL = "https://api.deepgram.com/v1"
	RequestTimeout = 30 * time.Second
)

// DeepgramClient transcribes prerecorded utterances using Deepgram's batch
// listen endpoint. One HTTP call per utterance, no streaming.
type DeepgramClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

func NewDeepgramClient(apiKey string, logger *log.Logger) *DeepgramClient {
	return &DeepgramClient{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: RequestTimeout},
		logger:     logger,
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *DeepgramClient) WithBaseURL(url string) *DeepgramClient {
	c.baseURL = url
	return c
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (c *DeepgramClient) Transcribe(
	ctx context.Context,
	oggOpus []byte,
) (string, error) {
	url := fmt.Sprintf(
		"%s/listen?model=nova-2&language=en-US&punctuate=true&smart_format=true",
		c.baseURL,
	)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewReader(oggOpus),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Token %s", c.apiKey))
	req.Header.Set("Content-Type", "audio/ogg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf(
			"unexpected status code %d: %s",
			resp.StatusCode,
			string(body),
		)
	}

	var response listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	var parts []string
	for _, channel := range response.Results.Channels {
		if len(channel.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(channel.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}

	transcript := strings.Join(parts, "\n")
	c.logger.Debug("hear", "bytes", len(oggOpus), "txt", transcript)

	return transcript, nil
}
