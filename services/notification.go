package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"tripsplit-backend/config"
	"tripsplit-backend/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SettleUpNotice describes one completed settle-between.
type SettleUpNotice struct {
	Team    models.Team
	From    models.Member
	To      models.Member
	Entries int64
}

type Notifier interface {
	NotifySettledBetween(ctx context.Context, n SettleUpNotice) error
}

// NotificationService emails both members of a settled pair via SendGrid.
type NotificationService struct {
	client  *sendgrid.Client
	from    *mail.Email
	appName string
	appURL  string
	log     *slog.Logger
}

// NewNotificationService returns a service that only logs when no SendGrid
// key is configured.
func NewNotificationService(cfg *config.Config, logger *slog.Logger) *NotificationService {
	ns := &NotificationService{
		from:    mail.NewEmail(cfg.AppName, cfg.SendGridFrom),
		appName: cfg.AppName,
		appURL:  cfg.AppURL,
		log:     logger.With("component", "notifications"),
	}
	if cfg.SendGridAPIKey != "" {
		ns.client = sendgrid.NewSendClient(cfg.SendGridAPIKey)
	}
	return ns
}

func (ns *NotificationService) NotifySettledBetween(ctx context.Context, n SettleUpNotice) error {
	for _, pair := range [][2]models.Member{{n.From, n.To}, {n.To, n.From}} {
		recipient, other := pair[0], pair[1]
		if recipient.Email == "" {
			continue
		}

		subject := fmt.Sprintf("You settled up with %s in %s", other.Nickname, n.Team.Name)
		body, err := ns.renderSettleUp(recipient, other, n)
		if err != nil {
			return err
		}
		if err := ns.send(ctx, recipient, subject, body); err != nil {
			return err
		}
	}
	return nil
}

func (ns *NotificationService) send(ctx context.Context, to models.Member, subject, htmlBody string) error {
	if ns.client == nil {
		ns.log.Warn("sendgrid api key not set, skipping email", "to", to.Email)
		return nil
	}

	msg := mail.NewSingleEmail(ns.from, subject, mail.NewEmail(to.Nickname, to.Email), subject, htmlBody)
	resp, err := ns.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", to.Email, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d for %s", resp.StatusCode, to.Email)
	}

	ns.log.Info("email sent", "to", to.Email)
	return nil
}

var settleUpTemplate = template.Must(template.New("settle_up").Parse(`
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #1DB954; margin-top: 0;">Settled up</h2>
		<p>Hi <strong>{{.Recipient}}</strong>,</p>
		<p>All {{.Entries}} entries between you and <strong>{{.Other}}</strong> in <strong>{{.Team}}</strong> are now marked as paid.</p>
		<p><a href="{{.AppURL}}">Open {{.AppName}}</a> to see the updated balances.</p>
		<p style="color: #999; font-size: 12px; margin-top: 24px;">{{.AppName}}</p>
	</div>
</body>
</html>`))

func (ns *NotificationService) renderSettleUp(recipient, other models.Member, n SettleUpNotice) (string, error) {
	var buf bytes.Buffer
	err := settleUpTemplate.Execute(&buf, map[string]interface{}{
		"Recipient": recipient.Nickname,
		"Other":     other.Nickname,
		"Team":      n.Team.Name,
		"Entries":   n.Entries,
		"AppName":   ns.appName,
		"AppURL":    ns.appURL,
	})
	if err != nil {
		return "", fmt.Errorf("rendering settle-up email: %w", err)
	}
	return buf.String(), nil
}
