package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Failure codes recorded in the send log when there is no HTTP status.
const (
	CodeTimeout = "timeout"
	CodeNetwork = "network"
	CodeEncrypt = "encrypt"
)

// Sender delivers an encoded payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) error
}

// DeliveryError describes a failed push. StatusCode is zero when the push
// service was never reached.
type DeliveryError struct {
	StatusCode int
	Code       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("push failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("push failed (%s): %v", e.Code, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Permanent reports whether the endpoint is gone for good (404/410).
func (e *DeliveryError) Permanent() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

// IsPermanent reports whether err means the subscription should be revoked.
func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent()
}

// FailureCode returns the code stored with a failed send log entry.
func FailureCode(err error) string {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeNetwork
}

// VAPIDConfig holds the application server identity.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string // mailto: or https: contact
}

// WebPushSender sends notifications with VAPID-signed Web Push requests.
type WebPushSender struct {
	vapid  VAPIDConfig
	ttl    time.Duration
	client webpush.HTTPClient
}

// NewWebPushSender creates a sender. Returns nil if the VAPID key pair is
// not configured (push disabled). A nil client uses an http.Client with the
// given timeout.
func NewWebPushSender(vapid VAPIDConfig, ttl, timeout time.Duration, client webpush.HTTPClient) *WebPushSender {
	if vapid.PublicKey == "" || vapid.PrivateKey == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultPushTTL
	}
	if client == nil {
		if timeout <= 0 {
			timeout = defaultPushTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WebPushSender{vapid: vapid, ttl: ttl, client: client}
}

// PublicKey returns the VAPID public key browsers subscribe with.
func (s *WebPushSender) PublicKey() string {
	if s == nil {
		return ""
	}
	return s.vapid.PublicKey
}

// Send pushes payload to sub with high urgency. Non-2xx responses become a
// *DeliveryError carrying the status code.
func (s *WebPushSender) Send(ctx context.Context, sub Subscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.vapid.Subject,
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		TTL:             int(s.ttl.Seconds()),
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Code:       strconv.Itoa(resp.StatusCode),
		Err:        fmt.Errorf("push service: %s", strings.TrimSpace(string(body))),
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &DeliveryError{Code: CodeTimeout, Err: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return &DeliveryError{Code: CodeTimeout, Err: err}
		}
		return &DeliveryError{Code: CodeNetwork, Err: err}
	}
	// webpush-go fails before any request when subscription keys are malformed.
	return &DeliveryError{Code: CodeEncrypt, Err: err}
}

// endpointSuffix shortens an endpoint for logs; endpoints embed push tokens.
func endpointSuffix(endpoint string) string {
	const n = 24
	if len(endpoint) <= n {
		return endpoint
	}
	return "…" + endpoint[len(endpoint)-n:]
}
