package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"triggerd/internal/trigger"
	logx "triggerd/pkg/logx"
)

const (
	notifyPath = "/notify-json/"

	// DefaultRequestTimeout bounds one outbound POST. There is no retry;
	// the attempt either terminates within this window or is a transport
	// error.
	DefaultRequestTimeout = 10 * time.Second

	maxResponseBody = 64 << 10
)

// Sender issues the outbound notification POST.
//
// Wire contract with the remote service:
//
//	POST {base}/notify-json/{targetId}?token={token}
//	Content-Type: application/json
//	{"text": ..., "title"?, "groupType"?, "iconUrl"?}
//
// The token travels only in the query string, never in the body or
// headers. Redirects are not followed. Whether targetId addresses a
// single recipient or a group (GRP prefix) is the remote's business.
type Sender struct {
	base   string
	client *http.Client
	log    logx.Logger
}

func NewSender(baseURL string, timeout time.Duration, log logx.Logger) (*Sender, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("notify base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("notify base url: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{
		base: base,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: log,
	}, nil
}

// payload is the JSON body. Optional fields are omitted entirely when
// unset; the remote rejects explicit nulls. The wire key is "iconUrl"
// (mixed case) regardless of how the config spells the field.
type payload struct {
	Text      string `json:"text"`
	Title     string `json:"title,omitempty"`
	GroupType string `json:"groupType,omitempty"`
	IconURL   string `json:"iconUrl,omitempty"`
}

// Send performs exactly one delivery attempt. All failures are folded
// into the returned Attempt; nothing propagates.
func (s *Sender) Send(ctx context.Context, def trigger.Definition) Attempt {
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := s.base + notifyPath + url.PathEscape(def.TargetID) +
		"?token=" + url.QueryEscape(def.Token)

	body, err := json.Marshal(payload{
		Text:      def.Text,
		Title:     def.Title,
		GroupType: def.GroupType,
		IconURL:   def.IconURL,
	})
	if err != nil {
		return Attempt{Outcome: OutcomeTransportError, Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Attempt{Outcome: OutcomeTransportError, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Attempt{Outcome: OutcomeTransportError, Reason: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Attempt{Outcome: OutcomeDelivered, Status: resp.StatusCode}
	}
	return Attempt{
		Outcome: OutcomeRejected,
		Status:  resp.StatusCode,
		Reason:  rejectionReason(resp.StatusCode, respBody),
	}
}

// rejectionReason extracts detail from an error response: the "error"
// then "message" field of a JSON body, else the raw body text, else the
// bare status.
func rejectionReason(status int, body []byte) string {
	detail := ""
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
			if v, ok := m["error"].(string); ok && strings.TrimSpace(v) != "" {
				detail = v
			} else if v, ok := m["message"].(string); ok && strings.TrimSpace(v) != "" {
				detail = v
			}
		}
		if detail == "" {
			detail = trimmed
		}
	}
	if detail == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, detail)
}
