package gmailclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const EMAIL_INTERVAL = 3 * time.Second

type email struct {
	to      []string
	subject string
	body    string
	headers map[string]string
}

// raw renders the RFC 2822 message
func (e email) raw(from string) string {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")

	names := make([]string, 0, len(e.headers))
	for name := range e.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\r\n", name, e.headers[name])
	}

	b.WriteString("\r\n")
	b.WriteString(e.body)
	return b.String()
}

// SendEmail sends msg and returns the Gmail message ID.
// Throttles requests to respect Gmail API rate limits.
func (c *Client) SendEmail(ctx context.Context, msg email) (string, error) {
	if len(msg.to) == 0 {
		return "", fmt.Errorf("no recipients for %q", msg.subject)
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if !c.lastSendTime.IsZero() {
		if wait := c.opts.SendInterval - time.Since(c.lastSendTime); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	gmailMessage := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(msg.raw(c.opts.Sender))),
	}

	var sent *gmail.Message
	// A send that failed with a server error may still have been delivered,
	// so only rate limiting is retried
	err := c.retry(ctx, "send", rateLimited, func() error {
		var err error
		sent, err = c.service.Users.Messages.Send(c.opts.UserID, gmailMessage).Context(ctx).Do()
		return err
	})
	c.lastSendTime = time.Now()
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug("Sent email",
		zap.String("messageID", sent.Id),
		zap.Strings("to", msg.to),
		zap.String("subject", msg.subject))
	return sent.Id, nil
}

// retry runs call with exponential backoff while canRetry accepts its error
func (c *Client) retry(ctx context.Context, op string, canRetry func(error) bool, call func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := call()
		if err == nil {
			return nil
		}
		if !canRetry(err) {
			return backoff.Permanent(err)
		}
		c.logger.Debug("Gmail call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, c.opts.MaxRetries), ctx))
}

// retryable accepts rate limiting, server errors and transport failures. It
// is for calls that are safe to repeat.
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// rateLimited accepts only errors where the request was refused unprocessed
func rateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}
