package models

import "time"

type EventType string

const (
	EventTypeClass    EventType = "class"
	EventTypeLecture  EventType = "lecture"
	EventTypeWorkshop EventType = "workshop"
	EventTypeOther    EventType = "other"
)

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Type        EventType `json:"type"`
	Location    string    `json:"location,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AttendanceStatus string

const (
	AttendanceStatusRegistered AttendanceStatus = "registered"
	AttendanceStatusConfirmed  AttendanceStatus = "confirmed"
	AttendanceStatusAbsent     AttendanceStatus = "absent"
)

type Attendance struct {
	ID        string           `json:"id"`
	EventID   string           `json:"event_id"`
	UserID    string           `json:"user_id"`
	Status    AttendanceStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}
