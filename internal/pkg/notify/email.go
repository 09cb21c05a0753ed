package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
)

// EmailNotifier sends opportunity alerts over SMTP.
type EmailNotifier struct {
	cfg    config.EmailConfig
	logger *slog.Logger
}

func NewEmailNotifier(cfg config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, logger: logger}
}

// NotifyOpportunity emails one alert. Incomplete SMTP configuration
// skips delivery silently so a partially configured deployment never
// breaks searches.
func (n *EmailNotifier) NotifyOpportunity(ctx context.Context, opp Opportunity) error {
	if n.cfg.SMTPHost == "" || n.cfg.FromEmail == "" || strings.TrimSpace(n.cfg.ToEmail) == "" {
		n.logger.Debug("email config incomplete, skip alert")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", n.cfg.ToEmail)
	m.SetHeader("Subject", fmt.Sprintf("[scout] %s: $%.2f profit on %s",
		opp.Recommendation, opp.NetProfit, opp.Marketplace))
	m.SetBody("text/plain", renderBody(opp))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPassword)

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send alert email: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	n.logger.Info("opportunity alert sent",
		slog.String("item", opp.ItemName),
		slog.String("marketplace", opp.Marketplace),
		slog.Float64("net_profit", opp.NetProfit))
	return nil
}

func renderBody(opp Opportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Item:        %s\n", opp.ItemName)
	fmt.Fprintf(&b, "Source:      %s store %s\n", opp.Retailer, opp.StoreID)
	fmt.Fprintf(&b, "Buy:         $%.2f\n", opp.BuyPrice)
	fmt.Fprintf(&b, "Sell on %s: $%.2f\n", opp.Marketplace, opp.SellPrice)
	fmt.Fprintf(&b, "Net profit:  $%.2f (score %.0f, %s)\n", opp.NetProfit, opp.Score, opp.Recommendation)
	if opp.ProductURL != "" {
		fmt.Fprintf(&b, "Product:     %s\n", opp.ProductURL)
	}
	return b.String()
}
