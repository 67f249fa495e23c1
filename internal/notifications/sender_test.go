package notifications

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEndpoint = "https://push.example.com/send/abc123"

// newTestSubscription returns a subscription with real browser-style keys so
// payload encryption succeeds.
func newTestSubscription(t *testing.T, endpoint string) Subscription {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return Subscription{
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

// newMockedSender returns a WebPushSender whose HTTP client is backed by an
// httpmock transport.
func newMockedSender(t *testing.T) (*WebPushSender, *httpmock.MockTransport) {
	t.Helper()

	private, public, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	mt := httpmock.NewMockTransport()
	client := &http.Client{Transport: mt}
	s := NewWebPushSender(VAPIDConfig{
		PublicKey:  public,
		PrivateKey: private,
		Subject:    "mailto:ops@example.com",
	}, time.Minute, time.Second, client)
	require.NotNil(t, s)
	return s, mt
}

func TestNewWebPushSenderDisabledWithoutKeys(t *testing.T) {
	assert.Nil(t, NewWebPushSender(VAPIDConfig{}, 0, 0, nil))

	var s *WebPushSender
	assert.Empty(t, s.PublicKey())
}

func TestWebPushSenderSuccess(t *testing.T) {
	s, mt := newMockedSender(t)

	var gotHeaders http.Header
	mt.RegisterResponder(http.MethodPost, testEndpoint, func(req *http.Request) (*http.Response, error) {
		gotHeaders = req.Header.Clone()
		return httpmock.NewStringResponse(http.StatusCreated, ""), nil
	})

	err := s.Send(context.Background(), newTestSubscription(t, testEndpoint), []byte(`{"title":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, mt.GetTotalCallCount())
	assert.Equal(t, "high", gotHeaders.Get("Urgency"))
	assert.Equal(t, "60", gotHeaders.Get("TTL"))
	assert.Contains(t, gotHeaders.Get("Authorization"), "vapid")
}

func TestWebPushSenderGoneIsPermanent(t *testing.T) {
	s, mt := newMockedSender(t)
	mt.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusGone, "subscription expired"))

	err := s.Send(context.Background(), newTestSubscription(t, testEndpoint), []byte(`{}`))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, "410", FailureCode(err))
	assert.Contains(t, err.Error(), "subscription expired")
}

func TestWebPushSenderNotFoundIsPermanent(t *testing.T) {
	s, mt := newMockedSender(t)
	mt.RegisterResponder(http.MethodPost, testEndpoint, httpmock.NewStringResponder(http.StatusNotFound, ""))

	err := s.Send(context.Background(), newTestSubscription(t, testEndpoint), []byte(`{}`))
	assert.True(t, IsPermanent(err))
}

func TestWebPushSenderServerErrorIsTransient(t *testing.T) {
	s, mt := newMockedSender(t)
	mt.RegisterResponder(http.MethodPost, testEndpoint, httpmock.NewStringResponder(http.StatusInternalServerError, "oops"))

	err := s.Send(context.Background(), newTestSubscription(t, testEndpoint), []byte(`{}`))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, "500", FailureCode(err))
}

func TestWebPushSenderNetworkError(t *testing.T) {
	s, mt := newMockedSender(t)
	mt.RegisterResponder(http.MethodPost, testEndpoint, httpmock.NewErrorResponder(errors.New("connection refused")))

	err := s.Send(context.Background(), newTestSubscription(t, testEndpoint), []byte(`{}`))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, CodeNetwork, FailureCode(err))
}

func TestWebPushSenderTimeout(t *testing.T) {
	s, mt := newMockedSender(t)
	mt.RegisterResponder(http.MethodPost, testEndpoint, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Send(ctx, newTestSubscription(t, testEndpoint), []byte(`{}`))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, CodeTimeout, FailureCode(err))
}

func TestWebPushSenderMalformedKeys(t *testing.T) {
	s, mt := newMockedSender(t)

	sub := Subscription{Endpoint: testEndpoint, P256dh: "not-a-key", Auth: "bad"}
	err := s.Send(context.Background(), sub, []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, CodeEncrypt, FailureCode(err))
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestEndpointSuffix(t *testing.T) {
	assert.Equal(t, "short", endpointSuffix("short"))
	long := "https://fcm.googleapis.com/fcm/send/0123456789abcdefghijklmnop"
	got := endpointSuffix(long)
	assert.Equal(t, "…"+long[len(long)-24:], got)
}
