package consoleclient

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/pkg/atomicfile"
	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

// maxHistory bounds the remembered post history
const maxHistory = 500

type historyEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Datetime int64  `json:"datetime"`
}

// Client prints posts, reminders and alerts to a writer. The post history is
// kept in memory and, when a history file is given, on disk so that a
// restarted process still sees what it published.
type Client struct {
	out     io.Writer
	loc     *time.Location
	logger  *zap.Logger
	file    *atomicfile.File
	mu      sync.Mutex
	history []historyEntry
}

// New returns a console messenger writing to out. historyPath may be empty.
func New(out io.Writer, loc *time.Location, historyPath string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	c := &Client{out: out, loc: loc, logger: logger}
	if historyPath != "" {
		c.file = atomicfile.New(historyPath, logger)
		c.history, _ = atomicfile.Load(c.file, []historyEntry{})
	}
	return c
}

func (c *Client) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// PublishPost prints the post and records it under a new ID
func (c *Client) PublishPost(ctx context.Context, post model.Post) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	c.history = append(c.history, historyEntry{ID: id, Title: post.Title, Datetime: post.Start.UnixMilli()})
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
	c.persist()

	c.printf("\n=== NEW SHIFT POST [%s] ===\n%s\n", id, post.Text(c.loc))
	return id, nil
}

// UpdatePost prints the current state of a post
func (c *Client) UpdatePost(ctx context.Context, post model.Post) error {
	c.printf("\n=== UPDATED SHIFT POST [%s] ===\n%s\n", post.EventID, post.Text(c.loc))
	return nil
}

// RetractPost forgets a post
func (c *Client) RetractPost(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, entry := range c.history {
		if entry.ID == id {
			c.history = append(c.history[:i], c.history[i+1:]...)
			c.persist()
			c.printf("\n=== RETRACTED SHIFT POST [%s] ===\n", id)
			return nil
		}
	}
	return fmt.Errorf("post %s not found", id)
}

// RecentPosts returns up to limit of the newest posts, oldest first
func (c *Client) RecentPosts(ctx context.Context, limit int) ([]model.PublishedPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.history
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	posts := make([]model.PublishedPost, 0, len(entries))
	for _, entry := range entries {
		posts = append(posts, model.PublishedPost{
			ID:    entry.ID,
			Title: entry.Title,
			Start: time.UnixMilli(entry.Datetime),
		})
	}
	return posts, nil
}

// SendReminder prints a shift start announcement
func (c *Client) SendReminder(ctx context.Context, post model.Post) error {
	c.printf("\n🔔 Shift starting: %s\n%s\n", post.Title, post.Text(c.loc))
	return nil
}

// SendStaffMessage prints a staff channel message
func (c *Client) SendStaffMessage(ctx context.Context, text string) error {
	c.printf("\n[staff] %s\n", text)
	return nil
}

// persist must be called with mu held
func (c *Client) persist() {
	if c.file == nil {
		return
	}
	if err := c.file.Save(c.history); err != nil {
		c.logger.Warn("Failed to save post history", zap.String("file", c.file.Path()), zap.Error(err))
	}
}
