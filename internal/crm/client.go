package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/logger"
	"contact-insights-go/internal/types"
)

const serviceName = "crm"

// Client is the typed adapter over the upstream CRM REST API. Every call
// carries the bearer token and the pinned API version header.
type Client struct {
	baseURL    string
	apiKey     string
	apiVersion string

	http          *http.Client
	recordingHTTP *http.Client
	maxRecording  int64

	log *logrus.Entry
}

type Option func(*Client)

// WithHTTPClient swaps the transport, used by tests against httptest servers.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithRecordingLimits(timeout time.Duration, maxBytes int64) Option {
	return func(c *Client) {
		c.recordingHTTP = &http.Client{Timeout: timeout}
		c.maxRecording = maxBytes
	}
}

func NewClient(baseURL, apiKey, apiVersion string, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		apiVersion:    apiVersion,
		http:          &http.Client{Timeout: 30 * time.Second},
		recordingHTTP: &http.Client{Timeout: 90 * time.Second},
		maxRecording:  25 * 1024 * 1024,
		log:           logger.Component(serviceName),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// getJSON issues one GET with bounded retries. Only transport errors and 5xx
// are retried; 4xx is terminal. Non-idempotent calls must not go through here.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	operation := func() error {
		req, err := c.newRequest(ctx, http.MethodGet, path, query)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(apperr.ErrUpstreamTimeout)
			}
			return apperr.UpstreamWrap(serviceName, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return apperr.Upstream(serviceName, resp.StatusCode, string(body))
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(apperr.Upstream(serviceName, resp.StatusCode, string(body)))
		}
		if err := json.Unmarshal(body, target); err != nil {
			return backoff.Permanent(apperr.UpstreamWrap(serviceName, fmt.Errorf("decode %s: %w", path, err)))
		}
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// GetContact fetches one contact by id.
func (c *Client) GetContact(ctx context.Context, contactID string) (types.Contact, error) {
	var raw contactEnvelope
	if err := c.getJSON(ctx, "/contacts/"+url.PathEscape(contactID), nil, &raw); err != nil {
		return types.Contact{}, err
	}
	return raw.normalize(), nil
}

// SearchContacts runs the upstream contact search, limited to limit rows.
func (c *Client) SearchContacts(ctx context.Context, query string, limit int) ([]types.Contact, error) {
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var raw contactListEnvelope
	if err := c.getJSON(ctx, "/contacts/", q, &raw); err != nil {
		return nil, err
	}
	out := make([]types.Contact, 0, len(raw.Contacts))
	for _, rc := range raw.Contacts {
		out = append(out, rc.normalize())
	}
	return out, nil
}

// ListConversations returns the conversation threads for one contact.
func (c *Client) ListConversations(ctx context.Context, contactID string) ([]types.Conversation, error) {
	q := url.Values{}
	q.Set("contactId", contactID)
	var raw conversationListEnvelope
	if err := c.getJSON(ctx, "/conversations/search", q, &raw); err != nil {
		return nil, err
	}
	out := make([]types.Conversation, 0, len(raw.Conversations))
	for _, rc := range raw.Conversations {
		out = append(out, types.Conversation{ID: rc.ID, ContactID: rc.ContactID})
	}
	return out, nil
}

// messagePageLimit is the upstream's page cap for conversation messages.
const messagePageLimit = 100

// ListMessages fetches every message of one conversation, walking the
// lastMessageId cursor until the upstream reports no next page. The returned
// slice preserves upstream order within the conversation; chronological
// ordering is the timeline builder's job.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]types.Message, error) {
	var all []types.Message
	cursor := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(messagePageLimit))
		if cursor != "" {
			q.Set("lastMessageId", cursor)
		}
		var raw messageListEnvelope
		path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
		if err := c.getJSON(ctx, path, q, &raw); err != nil {
			return nil, err
		}
		page, next, hasMore := raw.normalize(conversationID)
		all = append(all, page...)
		if !hasMore || next == "" || len(page) == 0 {
			return all, nil
		}
		cursor = next
	}
}

// GetRecording downloads the raw audio of a call message. Enforces the
// payload cap and the recording timeout; both failure modes are returned as
// their sentinel errors so callers can treat them as per-item losses.
func (c *Client) GetRecording(ctx context.Context, messageID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/conversations/messages/"+url.PathEscape(messageID)+"/recording", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/*")
	resp, err := c.recordingHTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, apperr.ErrUpstreamTimeout
		}
		return nil, apperr.UpstreamWrap(serviceName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperr.Upstream(serviceName, resp.StatusCode, string(body))
	}
	if resp.ContentLength > c.maxRecording {
		return nil, apperr.ErrRecordingTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxRecording+1))
	if err != nil {
		if isTimeout(err) {
			return nil, apperr.ErrUpstreamTimeout
		}
		return nil, apperr.UpstreamWrap(serviceName, err)
	}
	if int64(len(data)) > c.maxRecording {
		return nil, apperr.ErrRecordingTooLarge
	}
	return data, nil
}

// OpportunityPage is one page of the opportunity search plus its cursor.
type OpportunityPage struct {
	Opportunities []types.Opportunity
	Total         int
	NextCursor    string
	HasMore       bool
}

// SearchOpportunities fetches one page of the opportunity search. The cursor
// contract upstream is undocumented; we follow whichever of startAfterId /
// nextPageUrl the response carries (see normalize.go).
func (c *Client) SearchOpportunities(ctx context.Context, cursor string, limit int) (OpportunityPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("startAfterId", cursor)
	}
	var raw opportunitySearchEnvelope
	if err := c.getJSON(ctx, "/opportunities/search", q, &raw); err != nil {
		return OpportunityPage{}, err
	}
	return raw.normalize(), nil
}

// ListPipelines fetches every pipeline with its embedded stage and
// opportunity lists.
func (c *Client) ListPipelines(ctx context.Context) ([]types.Pipeline, error) {
	var raw pipelineListEnvelope
	if err := c.getJSON(ctx, "/opportunities/pipelines", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]types.Pipeline, 0, len(raw.Pipelines))
	for _, rp := range raw.Pipelines {
		out = append(out, rp.normalize())
	}
	return out, nil
}

// PipelineOpportunities is the fallback data source when the search endpoint
// is down: each pipeline's embedded opportunity list, flattened.
func (c *Client) PipelineOpportunities(ctx context.Context, pipelineID string) ([]types.Opportunity, error) {
	var raw pipelineEnvelope
	if err := c.getJSON(ctx, "/opportunities/pipelines/"+url.PathEscape(pipelineID), nil, &raw); err != nil {
		return nil, err
	}
	return raw.Pipeline.normalizeOpportunities(), nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
