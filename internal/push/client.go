package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/presencaplus/attendance-api/internal/config"
)

// Client sends messages through the FCM HTTP API. All calls carry a bounded
// timeout and go through a circuit breaker so a gateway outage cannot pile up
// blocked dispatch goroutines.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*sendResult]
	endpoint   string
	serverKey  string
	timeout    time.Duration
	logger     zerolog.Logger
}

var _ Gateway = (*Client)(nil)

type sendResult struct {
	messageID string
}

// Wire error strings of the FCM send API mapped onto the gateway contract
// codes.
var wireErrorCodes = map[string]string{
	"NotRegistered":         CodeTokenNotRegistered,
	"InvalidRegistration":   CodeInvalidRegistration,
	"MissingRegistration":   CodeInvalidArgument,
	"InvalidParameters":     CodeInvalidArgument,
	"MismatchSenderId":      CodeSenderIDMismatch,
	"InvalidApnsCredential": CodeThirdPartyAuthError,
	"InternalServerError":   CodeInternal,
	"Unavailable":           CodeUnavailable,
}

func NewClient(cfg config.FcmConfig, logger zerolog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*sendResult](gobreaker.Settings{
		Name:        "fcm",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A token rejection is a completed round-trip, not a gateway outage.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var rej *RejectionError
			return errors.As(err, &rej)
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		endpoint:   cfg.Endpoint,
		serverKey:  cfg.ServerKey,
		timeout:    timeout,
		logger:     logger.With().Str("component", "fcm_client").Logger(),
	}
}

type sendRequest struct {
	To           string            `json:"to"`
	DryRun       bool              `json:"dry_run,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	Notification *wireNotification `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

type wireNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
	Badge string `json:"badge,omitempty"`
}

type sendResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// Send posts one message to the gateway. Rejections come back as
// *RejectionError; every other failure (network, timeout, open breaker,
// unclassifiable response) is a generic error.
func (c *Client) Send(ctx context.Context, msg Message, dryRun bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (*sendResult, error) {
		return c.send(ctx, msg, dryRun)
	})
	if err != nil {
		return "", err
	}
	return result.messageID, nil
}

func (c *Client) send(ctx context.Context, msg Message, dryRun bool) (*sendResult, error) {
	req := sendRequest{
		To:     msg.Token,
		DryRun: dryRun,
		Data:   msg.Data,
		Notification: &wireNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Sound: msg.Sound,
		},
	}
	if msg.HighPriority {
		req.Priority = "high"
	}
	if msg.Badge > 0 {
		req.Notification.Badge = strconv.Itoa(msg.Badge)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fcm send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// A 401 means our server key is bad, not that the token is dead.
		// It must stay a generic error so the validator fails open.
		return nil, fmt.Errorf("fcm send: server key rejected (status %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("fcm send: gateway returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fcm send: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read send response: %w", err)
	}
	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("fcm send: empty result set")
	}

	result := parsed.Results[0]
	if result.Error != "" {
		code, ok := wireErrorCodes[result.Error]
		if !ok {
			return nil, fmt.Errorf("fcm send: unrecognized error %q", result.Error)
		}
		return nil, &RejectionError{Code: code, Reason: result.Error}
	}

	return &sendResult{messageID: result.MessageID}, nil
}
