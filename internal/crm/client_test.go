package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-insights-go/internal/apperr"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "2021-07-28")
}

func TestRequestCarriesAuthAndVersionHeaders(t *testing.T) {
	var gotAuth, gotVersion string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Version")
		fmt.Fprint(w, `{"contact": {"id": "c1", "firstName": "Ana"}}`)
	}))

	contact, err := c.GetContact(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "2021-07-28", gotVersion)
	assert.Equal(t, "Ana", contact.FirstName)
}

func TestUpstream4xxIsNotRetried(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))

	_, err := c.GetContact(context.Background(), "ghost")
	var ue *apperr.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestUpstream5xxIsRetried(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"contact": {"id": "c1"}}`)
	}))

	contact, err := c.GetContact(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", contact.ID)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestListMessagesWalksCursor(t *testing.T) {
	var cursors []string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("lastMessageId")
		cursors = append(cursors, cursor)
		if cursor == "" {
			fmt.Fprint(w, `{"messages": {"messages": [{"id": "m1", "messageType": "SMS", "dateAdded": "2026-02-01T10:00:00Z"}], "lastMessageId": "m1", "nextPage": true}}`)
			return
		}
		fmt.Fprint(w, `{"messages": {"messages": [{"id": "m2", "messageType": "SMS", "dateAdded": "2026-02-01T11:00:00Z"}], "nextPage": false}}`)
	}))

	msgs, err := c.ListMessages(context.Background(), "conv1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"", "m1"}, cursors)
}

func TestGetRecordingRejectsOversizedPayload(t *testing.T) {
	big := make([]byte, 2048)
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(big)
	}))
	WithRecordingLimits(5*time.Second, 1024)(c)

	_, err := c.GetRecording(context.Background(), "m1")
	assert.True(t, errors.Is(err, apperr.ErrRecordingTooLarge))
}

func TestGetRecordingTimesOut(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("audio"))
	}))
	WithRecordingLimits(50*time.Millisecond, 1024)(c)

	_, err := c.GetRecording(context.Background(), "m1")
	assert.True(t, errors.Is(err, apperr.ErrUpstreamTimeout))
}

func TestGetRecordingSuccess(t *testing.T) {
	audio := []byte("RIFFfake-wav-bytes")
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/conversations/messages/m1/recording")
		w.Write(audio)
	}))

	got, err := c.GetRecording(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestSearchOpportunitiesPage(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "o5", r.URL.Query().Get("startAfterId"))
		fmt.Fprint(w, `{"opportunities": [{"id": "o6", "pipelineId": "pl1"}], "meta": {"total": 7}}`)
	}))

	page, err := c.SearchOpportunities(context.Background(), "o5", 100)
	require.NoError(t, err)
	require.Len(t, page.Opportunities, 1)
	assert.Equal(t, 7, page.Total)
	assert.False(t, page.HasMore)
}
