package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"time"
)

type EmailConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type SMSConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NotificationClient is the production notification gateway: SMTP for email,
// an HTTP JSON provider for SMS. Errors are returned to the dispatcher and
// recorded on the reminder; nothing here retries.
type NotificationClient struct {
	email EmailConfig
	sms   SMSConfig
	http  *http.Client
}

func NewNotificationClient(email EmailConfig, sms SMSConfig) *NotificationClient {
	timeout := sms.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &NotificationClient{
		email: email,
		sms:   sms,
		http:  &http.Client{Timeout: timeout},
	}
}

func (c *NotificationClient) SendEmail(ctx context.Context, to, subject, body string) error {
	if c.email.Host == "" || c.email.Port == "" {
		return fmt.Errorf("SMTP not configured")
	}

	var auth smtp.Auth
	if c.email.User != "" {
		auth = smtp.PlainAuth("", c.email.User, c.email.Password, c.email.Host)
	}

	message := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", to, subject, body))
	addr := fmt.Sprintf("%s:%s", c.email.Host, c.email.Port)

	if err := smtp.SendMail(addr, auth, c.email.From, []string{to}, message); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (c *NotificationClient) SendSMS(ctx context.Context, to, body string) error {
	if c.sms.BaseURL == "" {
		return fmt.Errorf("SMS provider not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"to":      to,
		"message": body,
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sms.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sms.APIKey != "" {
		req.Header.Set("X-Api-Key", c.sms.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
