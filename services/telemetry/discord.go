package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cryptobot/services/engine"
)

// Embed colors.
const (
	ColorGreen = 0x2ECC71
	ColorRed   = 0xE74C3C
	ColorGrey  = 0x95A5A6
)

// DiscordNotifier sends signal alerts to a Discord webhook. An empty URL
// makes every send a no-op, so callers never need to branch on whether
// alerting is configured.
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SendSignal posts one embed per actionable signal.
func (d *DiscordNotifier) SendSignal(symbol string, sig engine.StrategySignal, price float64) error {
	if !d.enabled {
		return nil
	}
	color := ColorGrey
	switch sig.Signal {
	case engine.SignalBuy:
		color = ColorGreen
	case engine.SignalSell:
		color = ColorRed
	}

	desc := fmt.Sprintf("Price: %.4f", price)
	if sig.Signal != engine.SignalNeutral {
		desc = fmt.Sprintf("Entry: %.4f\nStop: %.4f\nTP1: %.4f\nTP2: %.4f",
			price, sig.StopLoss, sig.TakeProfit1, sig.TakeProfit2)
	} else if sig.Reason != "" {
		desc = fmt.Sprintf("Price: %.4f\nReason: %s", price, sig.Reason)
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("%s %s", symbol, sig.Signal),
				"description": desc,
				"color":       color,
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status: %d", resp.StatusCode)
	}
	return nil
}
