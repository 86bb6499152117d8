package model

import (
	"fmt"
	"strings"
	"time"
)

// RoleLine is one role's section of a shift post
type RoleLine struct {
	Role     string
	Emoji    string
	Users    []string
	Disabled bool
}

// Post is the outward view of a shift handed to a messenger
type Post struct {
	EventID   string
	Title     string
	Start     time.Time
	Roles     []RoleLine
	Cancelled bool
}

// PublishedPost is an entry of a messenger's outward history
type PublishedPost struct {
	ID    string
	Title string
	Start time.Time
}

// Text renders a plain-text body for the post
func (p Post) Text(loc *time.Location) string {
	if p.Cancelled {
		return fmt.Sprintf("❌ This shift has been cancelled.\n%s\n🕒 %s", p.Title, FormatTime(p.Start, loc))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n🕒 When: %s\n", p.Title, FormatTime(p.Start, loc))
	for _, line := range p.Roles {
		b.WriteString("\n")
		if line.Disabled {
			fmt.Fprintf(&b, "%s %s: Disabled\n", line.Emoji, line.Role)
			continue
		}
		fmt.Fprintf(&b, "%s %s:\n", line.Emoji, line.Role)
		if len(line.Users) == 0 {
			b.WriteString("  No signups yet\n")
			continue
		}
		for _, user := range line.Users {
			fmt.Fprintf(&b, "  • %s\n", user)
		}
	}
	return b.String()
}
