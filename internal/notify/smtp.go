package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/t212-digrin/internal/config"
	"github.com/jeovahfialho/t212-digrin/pkg/logger"
	"github.com/jeovahfialho/t212-digrin/pkg/metrics"
)

// Mailer delivers HTML messages through an SMTP relay. The connection uses
// STARTTLS when startTLS is set, implicit TLS when implicitTLS is set, and
// plain text otherwise (local relays only).
type Mailer struct {
	host        string
	port        int
	username    string
	password    string
	startTLS    bool
	implicitTLS bool
	timeout     time.Duration
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:        cfg.SMTPHost,
		port:        cfg.SMTPPort,
		username:    cfg.Email,
		password:    cfg.EmailPassword,
		startTLS:    cfg.SMTPStartTLS,
		implicitTLS: cfg.SMTPTLS && !cfg.SMTPStartTLS,
		timeout:     30 * time.Second,
	}
}

func (m *Mailer) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PipelineStepDuration.WithLabelValues("notify"))

	if recipient == "" {
		return fmt.Errorf("destinatário não configurado")
	}

	client, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if m.username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return fmt.Errorf("erro na autenticação SMTP: %w", err)
		}
	}

	from := m.username
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("erro no MAIL FROM: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("erro no RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("erro no DATA: %w", err)
	}
	if _, err := w.Write(buildMessage(from, recipient, subject, htmlBody)); err != nil {
		w.Close()
		return fmt.Errorf("erro ao escrever mensagem: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("erro ao finalizar mensagem: %w", err)
	}

	if err := client.Quit(); err != nil {
		logger.Warn("Erro ao encerrar sessão SMTP", zap.Error(err))
	}

	logger.Info("E-mail enviado",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
	)
	return nil
}

func (m *Mailer) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	dialer := &net.Dialer{Timeout: m.timeout}
	tlsConfig := &tls.Config{ServerName: m.host}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("erro ao conectar em %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(m.timeout))
	}

	if m.implicitTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("erro no handshake SMTP: %w", err)
	}

	if m.startTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("erro no STARTTLS: %w", err)
		}
	}
	return client, nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b bytes.Buffer
	header := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", mime.QEncoding.Encode("utf-8", subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="UTF-8"`},
		{"Content-Transfer-Encoding", "8bit"},
	}
	for _, h := range header {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(htmlBody, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}
