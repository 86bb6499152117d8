package gmailclient

import (
	"context"
	"fmt"
	"mime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/retro-shifts/internal/config"
	"github.com/jakechorley/retro-shifts/pkg/core/model"
	"github.com/jakechorley/retro-shifts/pkg/utils"
)

const (
	// SubjectPrefix marks shift post emails so they can be found again
	SubjectPrefix = "[Shift]"

	headerShiftStart = "X-Shift-Start"
	headerShiftTitle = "X-Shift-Title"

	historyQuery = `in:sent subject:"` + SubjectPrefix + `" newer_than:14d`
)

// Options configures a Client
type Options struct {
	// UserID is the mailbox to act on; "me" when empty
	UserID           string
	Sender           string
	SignupRecipients []string
	StaffRecipients  []string
	Location         *time.Location
	// SendInterval is the minimum gap between two sends; EMAIL_INTERVAL when zero
	SendInterval time.Duration
	// MaxRetries bounds the retries of one API call
	MaxRetries uint64
}

// Client delivers shift posts, reminders and staff alerts as email
type Client struct {
	service *gmail.Service
	opts    Options
	logger  *zap.Logger

	lastSendTime time.Time
	sendMutex    sync.Mutex
}

// NewClient creates a Gmail client from an OAuth token
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, token *oauth2.Token, opts Options, logger *zap.Logger) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	httpClient := oauthConfig.Client(ctx, token)

	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return NewWithService(service, opts, logger), nil
}

// OptionsFromConfig builds Options from the messenger section of cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		UserID:           cfg.Messenger.GmailUserID,
		Sender:           cfg.Messenger.GmailSender,
		SignupRecipients: cfg.Messenger.SignupRecipients,
		StaffRecipients:  cfg.Messenger.StaffRecipients,
		Location:         cfg.Location(),
	}
}

// NewWithService wraps an existing Gmail service
func NewWithService(service *gmail.Service, opts Options, logger *zap.Logger) *Client {
	if opts.UserID == "" {
		opts.UserID = "me"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SendInterval == 0 {
		opts.SendInterval = EMAIL_INTERVAL
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		service: service,
		opts:    opts,
		logger:  logger,
	}
}

// PublishPost emails the shift to the signup list. The Gmail message ID is
// the post ID.
func (c *Client) PublishPost(ctx context.Context, post model.Post) (string, error) {
	subject := fmt.Sprintf("%s %s - %s", SubjectPrefix, post.Title, model.FormatTime(post.Start, c.opts.Location))
	msg := email{
		to:      c.opts.SignupRecipients,
		subject: subject,
		body:    post.Text(c.opts.Location),
		headers: map[string]string{
			headerShiftStart: post.Start.UTC().Format(time.RFC3339),
			headerShiftTitle: mime.QEncoding.Encode("utf-8", post.Title),
		},
	}

	id, err := c.SendEmail(ctx, msg)
	if err != nil {
		return "", err
	}
	c.logger.Info("Published shift post", zap.String("postID", id), zap.String("title", post.Title))
	return id, nil
}

// UpdatePost sends a cancellation notice for cancelled posts. Sent email
// cannot be edited, so other updates are only logged.
func (c *Client) UpdatePost(ctx context.Context, post model.Post) error {
	if !post.Cancelled {
		c.logger.Debug("Post changed, email not resent", zap.String("postID", post.EventID))
		return nil
	}

	_, err := c.SendEmail(ctx, email{
		to:      c.opts.SignupRecipients,
		subject: "Cancelled: " + post.Title,
		body:    post.Text(c.opts.Location),
	})
	return err
}

// RetractPost moves the post email to the trash
func (c *Client) RetractPost(ctx context.Context, id string) error {
	err := c.retry(ctx, "trash", retryable, func() error {
		_, err := c.service.Users.Messages.Trash(c.opts.UserID, id).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to trash message %s: %w", id, err)
	}
	return nil
}

// RecentPosts lists shift post emails sent in the last two weeks, oldest
// first. Emails without shift headers are skipped.
func (c *Client) RecentPosts(ctx context.Context, limit int) ([]model.PublishedPost, error) {
	var list *gmail.ListMessagesResponse
	err := c.retry(ctx, "list", retryable, func() error {
		var err error
		list, err = c.service.Users.Messages.List(c.opts.UserID).
			Q(historyQuery).
			MaxResults(int64(limit)).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sent posts: %w", err)
	}

	var posts []model.PublishedPost
	for _, ref := range list.Messages {
		var msg *gmail.Message
		err := c.retry(ctx, "get", retryable, func() error {
			var err error
			msg, err = c.service.Users.Messages.Get(c.opts.UserID, ref.Id).
				Format("metadata").
				MetadataHeaders(headerShiftStart, headerShiftTitle).
				Context(ctx).
				Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read message %s: %w", ref.Id, err)
		}

		post, ok := publishedFromHeaders(ref.Id, msg)
		if !ok {
			c.logger.Debug("Skipping message without shift headers", zap.String("messageID", ref.Id))
			continue
		}
		posts = append(posts, post)
	}

	// Gmail lists newest first
	slices.Reverse(posts)
	return posts, nil
}

// SendReminder tells the signup list a shift is starting
func (c *Client) SendReminder(ctx context.Context, post model.Post) error {
	_, err := c.SendEmail(ctx, email{
		to:      c.opts.SignupRecipients,
		subject: "Starting now: " + post.Title,
		body:    "🔔 The shift is starting!\n\n" + post.Text(c.opts.Location),
	})
	return err
}

// SendStaffMessage emails the staff list
func (c *Client) SendStaffMessage(ctx context.Context, text string) error {
	subject, _, _ := strings.Cut(text, "\n")
	_, err := c.SendEmail(ctx, email{
		to:      c.opts.StaffRecipients,
		subject: subject,
		body:    text,
	})
	return err
}

func publishedFromHeaders(id string, msg *gmail.Message) (model.PublishedPost, bool) {
	if msg == nil || msg.Payload == nil {
		return model.PublishedPost{}, false
	}

	var startValue, titleValue string
	for _, h := range msg.Payload.Headers {
		switch {
		case strings.EqualFold(h.Name, headerShiftStart):
			startValue = h.Value
		case strings.EqualFold(h.Name, headerShiftTitle):
			titleValue = h.Value
		}
	}
	if startValue == "" || titleValue == "" {
		return model.PublishedPost{}, false
	}

	start, err := time.Parse(time.RFC3339, startValue)
	if err != nil {
		return model.PublishedPost{}, false
	}
	title, err := new(mime.WordDecoder).DecodeHeader(titleValue)
	if err != nil {
		return model.PublishedPost{}, false
	}
	return model.PublishedPost{ID: id, Title: title, Start: start}, true
}
