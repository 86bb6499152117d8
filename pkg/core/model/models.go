package model

import (
	"slices"
	"time"
)

// DisplayLayout is how shift times are shown to people (dd-mm-yyyy h:mm AM)
const DisplayLayout = "02-01-2006 3:04 PM"

// DateLayout is the ISO calendar date used for blackout dates and date keys
const DateLayout = "2006-01-02"

// Event is a single scheduled shift
type Event struct {
	ID              string
	Title           string
	Start           time.Time
	Signups         Signups
	Cancelled       bool
	Posted          bool // false while generated but not yet promoted
	ManuallyCreated bool
	DuplicateOf     string // set when promotion found this shift already posted under another ID
}

// Clone returns a deep copy safe to hand outside the service
func (e *Event) Clone() Event {
	c := *e
	c.Signups = e.Signups.Clone()
	return c
}

// DateKey returns the event's calendar date in loc
func (e *Event) DateKey(loc *time.Location) string {
	return e.Start.In(loc).Format(DateLayout)
}

// Signups maps a role name to the user IDs signed up for it, in signup order
type Signups map[string][]string

// NewSignups returns an empty list for every role
func NewSignups(roles []string) Signups {
	s := make(Signups, len(roles))
	for _, role := range roles {
		s[role] = []string{}
	}
	return s
}

// EnsureRoles adds an empty list for every role that has none
func (s Signups) EnsureRoles(roles []string) {
	for _, role := range roles {
		if _, ok := s[role]; !ok {
			s[role] = []string{}
		}
	}
}

// Assign moves userID into role. The user is first removed from every
// other list so they hold at most one role, then appended to role unless
// already there. Returns the roles the user was removed from.
func (s Signups) Assign(role, userID string) []string {
	var previous []string
	for r, users := range s {
		if r == role {
			continue
		}
		if idx := slices.Index(users, userID); idx >= 0 {
			s[r] = slices.Delete(users, idx, idx+1)
			previous = append(previous, r)
		}
	}
	slices.Sort(previous)

	if !slices.Contains(s[role], userID) {
		s[role] = append(s[role], userID)
	}
	return previous
}

// Remove takes userID off role. Returns false if they were not on it.
func (s Signups) Remove(role, userID string) bool {
	users := s[role]
	idx := slices.Index(users, userID)
	if idx < 0 {
		return false
	}
	s[role] = slices.Delete(users, idx, idx+1)
	return true
}

// RolesOf returns every role userID is on, sorted
func (s Signups) RolesOf(userID string) []string {
	var roles []string
	for role, users := range s {
		if slices.Contains(users, userID) {
			roles = append(roles, role)
		}
	}
	slices.Sort(roles)
	return roles
}

// Count returns the total number of signups across roles
func (s Signups) Count() int {
	n := 0
	for _, users := range s {
		n += len(users)
	}
	return n
}

// Clone returns a deep copy
func (s Signups) Clone() Signups {
	if s == nil {
		return nil
	}
	c := make(Signups, len(s))
	for role, users := range s {
		c[role] = slices.Clone(users)
		if c[role] == nil {
			c[role] = []string{}
		}
	}
	return c
}

// FormatTime renders t in loc using DisplayLayout
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DisplayLayout)
}
