package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nikhilbhutani/docconvert/internal/conversion"
	"github.com/nikhilbhutani/docconvert/internal/metrics"
	"github.com/nikhilbhutani/docconvert/internal/models"
)

const (
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
)

// Delivery is one POST attempt, kept for audit.
type Delivery struct {
	TaskID       string
	URL          string
	Event        string
	Payload      []byte
	StatusCode   int
	ResponseBody string
	Err          error
	Duration     time.Duration
}

func (d Delivery) Success() bool {
	return d.Err == nil && d.StatusCode >= 200 && d.StatusCode < 300
}

type DeliveryRecorder interface {
	Record(ctx context.Context, d Delivery) error
}

// Notifier POSTs terminal task payloads. Each notification is attempted
// exactly once; failures are reported but never retried.
type Notifier struct {
	httpClient *http.Client
	secret     string
	recorder   DeliveryRecorder
}

// NewNotifier builds a notifier. recorder may be nil.
func NewNotifier(timeout time.Duration, secret string, recorder DeliveryRecorder) *Notifier {
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		secret:     secret,
		recorder:   recorder,
	}
}

func EventFor(status models.TaskStatus) string {
	if status == models.StatusFailed {
		return EventTaskFailed
	}
	return EventTaskCompleted
}

// Notify delivers and logs any failure. It never returns an error so a
// webhook problem cannot change the task outcome.
func (n *Notifier) Notify(ctx context.Context, url string, payload models.TaskResponse) {
	if err := n.Deliver(ctx, url, payload); err != nil {
		slog.Error("webhook delivery failed", "task_id", payload.TaskID, "url", url, "error", err)
		return
	}
	slog.Info("webhook sent", "task_id", payload.TaskID, "url", url)
}

func (n *Notifier) Deliver(ctx context.Context, url string, payload models.TaskResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &conversion.WebhookDeliveryError{URL: url, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	d := Delivery{TaskID: payload.TaskID, URL: url, Event: EventFor(payload.Status), Payload: body}
	start := time.Now()
	d.StatusCode, d.ResponseBody, d.Err = n.post(ctx, url, d.Event, payload.TaskID, body)
	d.Duration = time.Since(start)

	metrics.RecordWebhook(d.Success())
	if n.recorder != nil {
		if err := n.recorder.Record(ctx, d); err != nil {
			slog.Error("failed to record webhook delivery", "task_id", d.TaskID, "error", err)
		}
	}

	if d.Success() {
		return nil
	}
	return &conversion.WebhookDeliveryError{URL: url, StatusCode: d.StatusCode, Err: d.Err}
}

func (n *Notifier) post(ctx context.Context, url, event, taskID string, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Task-ID", taskID)
	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, n.secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return resp.StatusCode, string(snippet), nil
}

// Sign returns the X-Webhook-Signature value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
