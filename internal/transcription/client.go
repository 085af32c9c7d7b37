package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/logger"
)

const serviceName = "transcription"

// Segment is one timed chunk of a transcript, passed through to the API
// response of /api/transcribe.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the speech-to-text output for one recording.
type Result struct {
	Text     string    `json:"text"`
	Duration float64   `json:"duration"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments,omitempty"`
}

// Client submits raw audio to the speech-to-text service. The upload is a
// single multipart POST; no retries — a duplicate submission is a duplicate
// billed transcription.
type Client struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
	log    *logrus.Entry
}

func NewClient(url, apiKey string) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		model:  "whisper-1",
		http:   &http.Client{Timeout: 120 * time.Second},
		log:    logger.Component(serviceName),
	}
}

// WithHTTPClient swaps the transport, used by tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// Transcribe uploads audio bytes with a language hint and returns the
// transcript. language defaults to "es" when empty.
func (c *Client) Transcribe(ctx context.Context, audio []byte, language string) (Result, error) {
	if language == "" {
		language = "es"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "recording.wav")
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return Result{}, err
	}
	w.WriteField("model", c.model)
	w.WriteField("language", language)
	w.WriteField("response_format", "verbose_json")
	if err := w.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, apperr.UpstreamWrap(serviceName, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return Result{}, apperr.Upstream(serviceName, resp.StatusCode, string(body))
	}

	var parsed struct {
		Text     string  `json:"text"`
		Duration float64 `json:"duration"`
		Language string  `json:"language"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, apperr.UpstreamWrap(serviceName, fmt.Errorf("decode response: %w", err))
	}

	res := Result{Text: parsed.Text, Duration: parsed.Duration, Language: parsed.Language}
	if res.Language == "" {
		res.Language = language
	}
	for _, s := range parsed.Segments {
		res.Segments = append(res.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	c.log.WithFields(logrus.Fields{
		"bytes":       len(audio),
		"duration":    res.Duration,
		"language":    res.Language,
		"took_ms":     time.Since(start).Milliseconds(),
		"text_length": len(res.Text),
	}).Info("transcription completed")
	return res, nil
}
