package domain

import "time"

// Timestamps tracks an entity's lifecycle. DeletedAt is nil until the
// entity is soft-deleted.
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// CreateTimestamps stamps CreatedAt and UpdatedAt to the same instant.
func CreateTimestamps(now time.Time) Timestamps {
	return Timestamps{CreatedAt: now, UpdatedAt: now}
}

// Update returns a copy with UpdatedAt set to now.
func (t Timestamps) Update(now time.Time) Timestamps {
	t.UpdatedAt = now
	return t
}

// Delete returns a copy with DeletedAt set to now.
func (t Timestamps) Delete(now time.Time) Timestamps {
	t.DeletedAt = &now
	return t
}

func (t Timestamps) IsDeleted() bool { return t.DeletedAt != nil }
