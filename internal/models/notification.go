package models

import "time"

type NotificationType string

const (
	NotificationTypeReminder NotificationType = "reminder"
	NotificationTypeUpdate   NotificationType = "update"
	NotificationTypeAlert    NotificationType = "alert"
)

func IsValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationTypeReminder, NotificationTypeUpdate, NotificationTypeAlert:
		return true
	}
	return false
}

type RelatedType string

const (
	RelatedTypeEvent      RelatedType = "event"
	RelatedTypeAttendance RelatedType = "attendance"
	RelatedTypeUser       RelatedType = "user"
	RelatedTypeSystem     RelatedType = "system"
)

func IsValidRelatedType(t RelatedType) bool {
	switch t {
	case RelatedTypeEvent, RelatedTypeAttendance, RelatedTypeUser, RelatedTypeSystem:
		return true
	}
	return false
}

// RelatedTo points a notification at the entity that triggered it.
type RelatedTo struct {
	Type RelatedType `json:"type"`
	ID   string      `json:"id"`
}

type Notification struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Type          NotificationType `json:"type"`
	RelatedTo     RelatedTo        `json:"related_to"`
	Read          bool             `json:"read"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
	Delivered     bool             `json:"delivered"`
	DeliveryError *string          `json:"delivery_error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NotificationStats aggregates per-user delivery counters. The four counts
// come from independent queries, so they are only eventually consistent with
// one another.
type NotificationStats struct {
	Total     int64 `json:"total"`
	Unread    int64 `json:"unread"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}
