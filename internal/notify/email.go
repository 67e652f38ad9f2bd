// Package notify delivers alert notifications to operators.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// EmailNotifier sends flagged-transaction emails to every Admin user
// over SMTP with STARTTLS.
type EmailNotifier struct {
	cfg  domain.SMTPConfig
	repo domain.Repository

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an SMTP notifier. Recipients are resolved
// per notification from the user store so newly added admins are
// picked up without a restart.
func NewEmailNotifier(cfg domain.SMTPConfig, repo domain.Repository) *EmailNotifier {
	return &EmailNotifier{
		cfg:  cfg,
		repo: repo,
		send: smtp.SendMail,
	}
}

// Notify emails all Admin users about a flagged transaction. Missing
// SMTP settings or an empty admin list skip delivery without error.
func (n *EmailNotifier) Notify(ctx context.Context, tx *domain.Transaction, alert *domain.Alert) error {
	if n.cfg.Host == "" || n.cfg.Username == "" {
		slog.Warn("email settings not configured, skipping notification", "tx_id", tx.ID)
		return nil
	}

	admins, err := n.repo.ListUsersByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(admins) == 0 {
		slog.Warn("no admin users found, skipping notification", "tx_id", tx.ID)
		return nil
	}

	to := make([]string, 0, len(admins))
	for _, a := range admins {
		if a.Email != "" {
			to = append(to, a.Email)
		}
	}
	if len(to) == 0 {
		return nil
	}

	body, err := renderAlertEmail(tx, alert)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	subject := fmt.Sprintf("Fraud Alert: Transaction Flagged - Risk Score: %d", tx.RiskScore)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	// Gmail app passwords may contain spaces for readability
	password := strings.ReplaceAll(n.cfg.Password, " ", "")
	a := smtp.PlainAuth("", n.cfg.Username, password, n.cfg.Host)

	if err := n.send(addr, a, n.cfg.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("flagged transaction email sent",
		"tx_id", tx.ID,
		"recipients", len(to),
	)
	return nil
}

var alertEmailTmpl = template.Must(template.New("alert").Funcs(template.FuncMap{
	"orNA": func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background-color: #0a164d; color: white; padding: 20px; text-align: center; }
    .content { background-color: #f8fbf4; padding: 20px; }
    .alert-box { background-color: #fff3cd; border-left: 4px solid #ffc107; padding: 15px; margin: 20px 0; }
    .detail-row { margin: 10px 0; padding: 8px; background-color: white; border-radius: 4px; }
    .label { font-weight: bold; color: #0a164d; }
    .footer { text-align: center; padding: 20px; color: #666; font-size: 12px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>Fraud Detection Alert</h1></div>
    <div class="content">
      <div class="alert-box">
        <h2 style="margin-top: 0;">Transaction Flagged - {{.Severity}} Severity</h2>
        <p>A transaction has been flagged by the fraud detection system and requires your attention.</p>
      </div>
      <h3>Transaction Details</h3>
      <div class="detail-row"><span class="label">Transaction ID:</span> {{.Tx.ID}}</div>
      <div class="detail-row"><span class="label">Risk Score:</span> {{.Tx.RiskScore}}/100</div>
      <div class="detail-row"><span class="label">Amount:</span> {{printf "%.2f" .Tx.Amount}}</div>
      <div class="detail-row"><span class="label">Transaction Type:</span> {{.Tx.Type}}</div>
      <div class="detail-row"><span class="label">Sender Account:</span> {{.Tx.SenderAccount}}</div>
      <div class="detail-row"><span class="label">Receiver Account:</span> {{.Tx.ReceiverAccount}}</div>
      <div class="detail-row"><span class="label">Location:</span> {{orNA .Tx.Location}}</div>
      <div class="detail-row"><span class="label">Device:</span> {{orNA .Tx.Device}}</div>
      <div class="detail-row"><span class="label">IP Address:</span> {{orNA .Tx.IPAddress}}</div>
      <div class="detail-row"><span class="label">Date &amp; Time:</span> {{.When}} UTC</div>
      <div class="detail-row"><span class="label">Triggered Rule:</span> {{.Alert.RuleName}}</div>
      <p style="margin-top: 30px;"><strong>Action Required:</strong> Please review this transaction in Kestrel.</p>
    </div>
    <div class="footer">
      <p>This is an automated message from the fraud detection system.</p>
      <p>Please do not reply to this email.</p>
    </div>
  </div>
</body>
</html>`))

type alertEmailData struct {
	Tx       *domain.Transaction
	Alert    *domain.Alert
	Severity string
	When     string
}

func renderAlertEmail(tx *domain.Transaction, alert *domain.Alert) ([]byte, error) {
	var buf bytes.Buffer
	err := alertEmailTmpl.Execute(&buf, alertEmailData{
		Tx:       tx,
		Alert:    alert,
		Severity: strings.ToUpper(string(alert.Severity)),
		When:     tx.CreatedAt.UTC().Format(time.DateTime),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LogNotifier records notifications to the structured log. Used when
// SMTP is not configured.
type LogNotifier struct{}

// Notify logs the flagged transaction instead of delivering anything.
func (LogNotifier) Notify(ctx context.Context, tx *domain.Transaction, alert *domain.Alert) error {
	slog.Info("alert notification",
		"tx_id", tx.ID,
		"risk_score", tx.RiskScore,
		"severity", alert.Severity,
		"rule", alert.RuleName,
	)
	return nil
}
