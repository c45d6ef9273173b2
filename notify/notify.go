// Package notify dispatches Guardian events — confirmation requests and
// Critical posture transitions — to external channels: a webhook, a local
// command, email, Slack, and Telegram. Grounded on the teacher's
// engine/alert.go Notifier, including its SSRF-hardened webhook
// validation; retargeted from xtop's health events to Guardian's
// model.ConfirmationRequest and model.GlobalState.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hostguardian/guardian/config"
	"github.com/hostguardian/guardian/model"
)

// Notifier sends Guardian alerts to every channel named in its config, and
// satisfies guardian.ConfirmationSink.
type Notifier struct {
	cfg    config.AlertConfig
	logger *zap.Logger
	client *http.Client
}

// New creates a Notifier. A nil logger discards log output.
func New(cfg config.AlertConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether any alert destination is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.Webhook != "" || n.cfg.Command != "" ||
		n.cfg.Email != "" || n.cfg.SlackWebhook != "" ||
		(n.cfg.TelegramBotToken != "" && n.cfg.TelegramChatID != "")
}

// Request implements guardian.ConfirmationSink: it fans a
// Request-Confirmation-level intervention out to every configured channel.
func (n *Notifier) Request(req model.ConfirmationRequest) {
	if !n.Enabled() {
		return
	}
	text := fmt.Sprintf("guardian: confirmation requested for %s (command %s)\n%s", req.CommandName, req.CommandID, req.Details)
	go n.dispatch("confirmation_request", req, text)
}

// PostureChanged fans out state when its State is Critical and does
// nothing otherwise. It keeps no previous state, so every call with a
// Critical state dispatches, not only the first one after a transition.
func (n *Notifier) PostureChanged(state model.GlobalState) {
	if !n.Enabled() || state.State != model.Critical {
		return
	}
	text := fmt.Sprintf("guardian: host posture is now CRITICAL (max score %.1f, %d suspicious processes)",
		state.MaxScore, state.SuspiciousCount)
	go n.dispatch("posture_critical", state, text)
}

func (n *Notifier) dispatch(event string, payload interface{}, text string) {
	body := map[string]interface{}{
		"event":   event,
		"payload": payload,
		"ts":      time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(body)
	if err != nil {
		n.logger.Error("alert marshal error", zap.Error(err))
		return
	}

	if n.cfg.Webhook != "" {
		n.sendWebhook(n.cfg.Webhook, data)
	}
	if n.cfg.Command != "" {
		n.sendCommand(event, data)
	}
	if n.cfg.Email != "" {
		n.sendEmail("guardian: "+event, string(data))
	}
	if n.cfg.SlackWebhook != "" {
		n.sendSlack(text)
	}
	if n.cfg.TelegramBotToken != "" && n.cfg.TelegramChatID != "" {
		n.sendTelegram(text)
	}
}

func (n *Notifier) sendEmail(subject, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "mail", "-s", subject, n.cfg.Email)
	cmd.Stdin = strings.NewReader(body)
	if err := cmd.Run(); err != nil {
		n.logger.Error("email send failed", zap.Error(err))
	}
}

func (n *Notifier) sendSlack(text string) {
	if err := validateWebhookURL(n.cfg.SlackWebhook); err != nil {
		n.logger.Warn("slack webhook blocked", zap.Error(err))
		return
	}
	n.postJSON(n.cfg.SlackWebhook, map[string]string{"text": text}, "slack")
}

func (n *Notifier) sendTelegram(text string) {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBotToken)
	n.postJSON(apiURL, map[string]string{"chat_id": n.cfg.TelegramChatID, "text": text}, "telegram")
}

func (n *Notifier) sendWebhook(webhook string, data []byte) {
	if err := validateWebhookURL(webhook); err != nil {
		n.logger.Warn("webhook blocked", zap.Error(err))
		return
	}
	n.post(webhook, data, "webhook")
}

func (n *Notifier) postJSON(url string, payload map[string]string, channel string) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	n.post(url, data, channel)
}

func (n *Notifier) post(url string, data []byte, channel string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("alert send failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// sendCommand runs the configured shell command with the alert data passed
// via environment variables.
func (n *Notifier) sendCommand(event string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "sh", "-c", n.cfg.Command)
	cmd.Env = append(os.Environ(), "GUARDIAN_EVENT="+event, "GUARDIAN_PAYLOAD="+string(data))
	_ = cmd.Run()
}

// validateWebhookURL checks that the webhook URL uses http/https and that
// its host is not one of a fixed list of localhost and cloud metadata
// hosts, compared by exact match (SSRF hardening, carried over from the
// teacher unchanged). Other link-local or private addresses are not
// rejected.
func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https scheme, got %q", scheme)
	}
	host := strings.ToLower(u.Hostname())
	blocked := []string{"169.254.169.254", "metadata.google.internal", "localhost", "127.0.0.1", "::1", "[::1]"}
	for _, b := range blocked {
		if host == b {
			return fmt.Errorf("webhook URL host %q is blocked", host)
		}
	}
	return nil
}
