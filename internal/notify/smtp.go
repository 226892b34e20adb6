package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

type SMTPConfig struct {
	Server   string
	Port     int
	UseTLS   bool
	Username string
	Password string
	From     string
}

// SMTPNotifier sends alerts as plain-text email.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	n := &SMTPNotifier{cfg: cfg}
	n.send = n.sendMail
	return n
}

func (n *SMTPNotifier) NotifyBudgetAlert(ctx context.Context, a core.BudgetAlert) error {
	if a.Email == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(n.cfg.Server, strconv.Itoa(n.cfg.Port))
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Server)
	}

	msg := buildMessage(n.cfg.From, a.Email, Subject(a), Body(a), time.Now())
	if err := n.send(addr, auth, n.cfg.From, []string{a.Email}, msg); err != nil {
		return fmt.Errorf("send budget alert: %w", err)
	}

	slog.InfoContext(ctx, "Budget alert email sent",
		log.FieldComponent, log.ComponentNotify,
		log.FieldUserID, a.UserID,
		log.FieldCategoryID, int(a.CategoryID),
		log.FieldMonth, a.Month.String())
	return nil
}

// sendMail is smtp.SendMail with STARTTLS made mandatory when UseTLS is set.
func (n *SMTPNotifier) sendMail(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	c, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if n.cfg.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server %s does not support STARTTLS", n.cfg.Server)
		}
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Server, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if a != nil {
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to, subject, body string, date time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
