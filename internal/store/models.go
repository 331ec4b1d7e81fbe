package store

import "time"

// JSONMap is a schema-on-read document: known keys are read by name, unknown
// keys survive the round trip untouched.
type JSONMap map[string]any

// User is a collaborator record: the core only needs to resolve it and copy
// health context into recommendation snapshots.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Age           int       `json:"age,omitempty"`
	Gender        string    `json:"gender,omitempty"`
	Ethnicity     string    `json:"ethnicity,omitempty"`
	HealthIssues  []any     `json:"health_issues"`
	Questionnaire []any     `json:"questionnaire"`
	CreatedAt     time.Time `json:"createdAt"`
	Deleted       bool      `json:"-"`
}

// Room is a collaborator record describing the physical space a
// recommendation applies to.
type Room struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Name       string    `json:"room_name"`
	Length     float64   `json:"room_length"`
	Width      float64   `json:"room_width"`
	Height     float64   `json:"room_height"`
	Occupancy  int       `json:"occupancy"`
	Devices    []any     `json:"devices"`
	Appliances []any     `json:"appliances"`
	Doors      int       `json:"doors"`
	Windows    int       `json:"windows"`
	CreatedAt  time.Time `json:"createdAt"`
	Deleted    bool      `json:"-"`
}

// NodeReading is one ingested indoor-sensor sample. Immutable once appended.
type NodeReading struct {
	ID         string    `json:"id"`
	DeviceKey  string    `json:"deviceKey"`
	Sample     JSONMap   `json:"sample"`
	SourceTS   time.Time `json:"sourceTimestamp"`
	IngestedAt time.Time `json:"ingestedAt"`
	Deleted    bool      `json:"-"`
}

// OutdoorReading is one merged ambient pollutant/weather sample, one per poll
// cycle. RecordedAt carries the shared display-time convention.
type OutdoorReading struct {
	ID           string    `json:"id"`
	RecordedAt   string    `json:"timestamp"`
	Measurements JSONMap   `json:"measurements"`
	Metadata     JSONMap   `json:"metadata"`
	IngestedAt   time.Time `json:"ingestedAt"`
	Deleted      bool      `json:"-"`
}

// Conditions is the denormalized snapshot a recommendation was computed from,
// kept for audit and fallback display.
type Conditions struct {
	Indoor     JSONMap `json:"indoor"`
	Outdoor    JSONMap `json:"outdoor"`
	UserHealth []any   `json:"userHealth"`
}

// Recommendation is one computed suggestion for a room/user pair. Rows are
// never updated; "latest" is always computed_at descending over live rows.
type Recommendation struct {
	ID             string     `json:"id"`
	RoomID         string     `json:"roomId"`
	UserID         string     `json:"userId"`
	Payload        JSONMap    `json:"recommendation"`
	Snapshot       Conditions `json:"conditions"`
	RecheckMinutes int        `json:"recheckMinutes"`
	ComputedAt     string     `json:"computedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	Deleted        bool       `json:"-"`
}

// Conversation is an ordered, soft-deletable thread of exchanges for a user,
// optionally scoped to a room.
type Conversation struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	RoomID         string    `json:"roomId,omitempty"`
	Exchanges      []JSONMap `json:"messages"`
	LastActivityAt string    `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
	Deleted        bool      `json:"-"`
}
