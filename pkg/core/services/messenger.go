package services

import (
	"context"
	"strings"

	"github.com/jakechorley/retro-shifts/pkg/core/model"
)

// Messenger delivers everything people see: shift posts, start reminders and
// staff alerts. Delivery is best-effort; the service logs failures and
// carries on.
type Messenger interface {
	// PublishPost creates a visible post and returns its permanent ID
	PublishPost(ctx context.Context, post model.Post) (string, error)
	// UpdatePost refreshes a published post, including cancellation notices
	UpdatePost(ctx context.Context, post model.Post) error
	// RetractPost removes a published post
	RetractPost(ctx context.Context, id string) error
	// RecentPosts returns up to limit of the most recent published posts
	RecentPosts(ctx context.Context, limit int) ([]model.PublishedPost, error)
	// SendReminder announces that a shift is starting
	SendReminder(ctx context.Context, post model.Post) error
	// SendStaffMessage posts to the staff channel
	SendStaffMessage(ctx context.Context, text string) error
}

// TargetResolver maps a role name to something the messenger can address,
// such as a mention
type TargetResolver interface {
	ResolveTarget(name string) (string, bool)
}

// StaticResolver resolves targets from a fixed table, ignoring case
type StaticResolver map[string]string

// NewStaticResolver builds a resolver from a name -> target table
func NewStaticResolver(targets map[string]string) StaticResolver {
	r := make(StaticResolver, len(targets))
	for name, target := range targets {
		r[strings.ToLower(strings.TrimSpace(name))] = target
	}
	return r
}

// ResolveTarget implements TargetResolver
func (r StaticResolver) ResolveTarget(name string) (string, bool) {
	target, ok := r[strings.ToLower(strings.TrimSpace(name))]
	if !ok || target == "" {
		return "", false
	}
	return target, true
}
