package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

const (
	notifyTimeout      = 10 * time.Second
	defaultTelegramAPI = "https://api.telegram.org"
)

// Telegram HTML parse mode needs these three escaped in substituted text.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Sender delivers alert messages to notification channels over HTTP.
// Delivery is best effort: failures are logged and dropped so a dead
// webhook cannot stall a probe worker.
type Sender struct {
	logger      *slog.Logger
	channels    ChannelSource
	client      *http.Client
	telegramAPI string
}

// NewSender returns a sender resolving channels through channels.
// telegramAPI overrides the Telegram API base URL; empty means the
// public endpoint. timeout bounds each delivery attempt; zero picks
// the default.
func NewSender(logger *slog.Logger, channels ChannelSource, telegramAPI string, timeout time.Duration) *Sender {
	if telegramAPI == "" {
		telegramAPI = defaultTelegramAPI
	}
	if timeout <= 0 {
		timeout = notifyTimeout
	}
	return &Sender{
		logger:      logger.With("component", "notifier"),
		channels:    channels,
		client:      &http.Client{Timeout: timeout},
		telegramAPI: strings.TrimRight(telegramAPI, "/"),
	}
}

// Notify resolves the channel and dispatches msg to it. A channel
// belonging to a different tenant than ownerID is refused without
// error; alerting must never leak across tenants.
func (s *Sender) Notify(ctx context.Context, ownerID string, channelID int64, msg Message) {
	ch, err := s.channels.ChannelByIDAnyOwner(ctx, channelID)
	if err != nil {
		s.logger.Warn("resolving notification channel", "channel_id", channelID, "error", err)
		return
	}
	if ch.OwnerID != ownerID {
		s.logger.Debug("dropping alert for foreign channel", "channel_id", channelID)
		return
	}

	cfg := ch.ParseConfig()
	switch ch.Kind {
	case store.ChannelWebhook:
		err = s.sendWebhook(ctx, cfg.URL, msg)
	case store.ChannelTelegram:
		err = s.sendTelegram(ctx, cfg, msg)
	default:
		err = fmt.Errorf("unknown channel kind %q", ch.Kind)
	}
	if err != nil {
		s.logger.Warn("alert delivery failed", "channel", ch.Name, "kind", ch.Kind, "error", err)
		return
	}
	s.logger.Info("alert delivered", "channel", ch.Name, "kind", ch.Kind)
}

// sendWebhook posts the Discord-style {"content": text} payload. The
// response status is ignored; receivers vary too much to interpret it.
func (s *Sender) sendWebhook(ctx context.Context, url string, msg Message) error {
	if url == "" {
		return errors.New("webhook channel has no url")
	}
	text := fmt.Sprintf("🚨 **Alert: %s**\n**Device:** %s (%s)\n**Reason:** %s",
		msg.SensorName, msg.ClientName, msg.IPAddress, msg.Reason)

	resp, err := s.postJSON(ctx, url, map[string]string{"content": text})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *Sender) sendTelegram(ctx context.Context, cfg store.ChannelConfig, msg Message) error {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return errors.New("telegram channel missing bot_token or chat_id")
	}
	text := fmt.Sprintf("🚨 <b>Alert: %s</b>\n\n<b>Device:</b> %s (%s)\n<b>Reason:</b> %s",
		htmlEscaper.Replace(msg.SensorName),
		htmlEscaper.Replace(msg.ClientName),
		htmlEscaper.Replace(msg.IPAddress),
		htmlEscaper.Replace(msg.Reason))

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.telegramAPI, cfg.BotToken)
	resp, err := s.postJSON(ctx, url, map[string]string{
		"chat_id":    cfg.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *Sender) postJSON(ctx context.Context, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}
