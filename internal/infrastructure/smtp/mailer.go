package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/finance-tracker/internal/config"
	"github.com/finance-tracker/internal/domain"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// dialer is the subset of *gomail.Dialer the mailer uses.
type dialer interface {
	Dial() (gomail.SendCloser, error)
	DialAndSend(m ...*gomail.Message) error
}

// Mailer delivers OTP codes by email.
type Mailer struct {
	dialer dialer
	from   string
	addr   string
	expiry time.Duration
	log    *logrus.Logger
}

func NewMailer(cfg *config.Config, log *logrus.Logger) *Mailer {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	if cfg.SMTPInsecureSkipVerify {
		d.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost, InsecureSkipVerify: true}
	}
	return &Mailer{
		dialer: d,
		from:   cfg.SMTPFrom,
		addr:   fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		expiry: cfg.OTP.Expiry,
		log:    log,
	}
}

func (m *Mailer) Deliver(ctx context.Context, email, code string, purpose domain.Purpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	html, err := renderHTML(code, purpose, m.expiry)
	if err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subjectFor(purpose))
	msg.SetBody("text/plain", renderText(code, m.expiry))
	msg.AddAlternative("text/html", html)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send otp mail via %s: %w", m.addr, err)
	}
	m.log.WithFields(logrus.Fields{"to": email, "purpose": purpose, "smtp": m.addr}).Debug("otp mail sent")
	return nil
}

type dialResult struct {
	s   gomail.SendCloser
	err error
}

// Ping opens and closes an SMTP session to check the relay is reachable.
// It returns ctx.Err() if the dial outlives ctx; a late session is closed.
func (m *Mailer) Ping(ctx context.Context) error {
	done := make(chan dialResult, 1)
	go func() {
		s, err := m.dialer.Dial()
		done <- dialResult{s: s, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("dial %s: %w", m.addr, res.err)
		}
		return res.s.Close()
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				_ = res.s.Close()
			}
		}()
		return fmt.Errorf("dial %s: %w", m.addr, ctx.Err())
	}
}
