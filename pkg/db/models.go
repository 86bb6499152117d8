package db

// EventRecord is the persisted form of an event
type EventRecord struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Datetime        int64               `json:"datetime"` // epoch milliseconds
	Signups         map[string][]string `json:"signups"`
	Cancelled       bool                `json:"cancelled"`
	Posted          bool                `json:"posted"`
	ManuallyCreated bool                `json:"manuallyCreated,omitempty"`
	DuplicateOf     string              `json:"duplicateOf,omitempty"`
}

// ShiftLogEntry is an archived snapshot of an event taken when its start
// reminder fires
type ShiftLogEntry struct {
	EventID    string              `json:"eventId"`
	Title      string              `json:"title"`
	Datetime   int64               `json:"datetime"`
	Signups    map[string][]string `json:"signups"`
	ArchivedAt int64               `json:"archivedAt"`
}

// Collection names one of the independently persisted documents
type Collection string

const (
	CollectionEvents        Collection = "events"
	CollectionGenerated     Collection = "generated"
	CollectionBlackoutDates Collection = "blackout_dates"
	CollectionShiftLog      Collection = "shift_log"
	CollectionDisabledRoles Collection = "disabled_roles"
)

// Collections lists every collection in load order
var Collections = []Collection{
	CollectionEvents,
	CollectionGenerated,
	CollectionBlackoutDates,
	CollectionShiftLog,
	CollectionDisabledRoles,
}
