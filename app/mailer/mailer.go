package mailer

import (
	"net/smtp"
	"strconv"
	"sync"

	"github.com/vantage-solutions/ms-go-accounts/config"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender delivers a single HTML message. Callers treat delivery as
// fire-and-forget: a failure is logged by the caller, never propagated into
// the operation that triggered the send.
type Sender interface {
	Send(to, subject, body string) error
}

type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.HTML = []byte(body)

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	return e.Send(addr, auth)
}

// LogSender is the stand-in used when no SMTP host is configured.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(to, subject, body string) error {
	logrus.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("Mail delivery skipped: SMTP not configured")
	return nil
}

// Recorder captures sent messages for tests.
type Recorder struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

type Message struct {
	To      string
	Subject string
	Body    string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, Message{To: to, Subject: subject, Body: body})
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.Sent))
	copy(out, r.Sent)
	return out
}
