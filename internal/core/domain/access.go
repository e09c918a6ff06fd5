package domain

import "time"

// Access is a per-(source,instance) observation of a config fetch. Two
// Accesses are equal iff source and instance match; Previous is set once
// the access has been pinged at least once.
type Access struct {
	Source    Id
	Instance  Id
	Timestamp time.Time
	Previous  *time.Time
}

// UnknownId is used for either Source or Instance when the caller did not
// identify itself.
func UnknownId() Id {
	id, _ := NewId("unknown")
	return id
}

// NewAccess records a fresh access at now, with no previous timestamp.
func NewAccess(source, instance Id, now time.Time) Access {
	return Access{Source: source, Instance: instance, Timestamp: now}
}

// Ping returns a fresh copy with Timestamp = now and Previous = the
// receiver's Timestamp.
func (a Access) Ping(now time.Time) Access {
	prev := a.Timestamp
	return Access{Source: a.Source, Instance: a.Instance, Timestamp: now, Previous: &prev}
}

// Elapsed is now - Timestamp.
func (a Access) Elapsed(now time.Time) time.Duration {
	return now.Sub(a.Timestamp)
}

// ElapsedFromPrevious is Timestamp - Previous, when Previous is set.
func (a Access) ElapsedFromPrevious() (time.Duration, bool) {
	if a.Previous == nil {
		return 0, false
	}
	return a.Timestamp.Sub(*a.Previous), true
}

// Equal matches the domain's notion of "the same access source": source and
// instance equal, regardless of timestamps.
func (a Access) Equal(other Access) bool {
	return a.Source.Equal(other.Source) && a.Instance.Equal(other.Instance)
}

// maxEvictionDuration implements the adaptive TTL rule from clean_old_accesses:
// widen the TTL for regularly-polling sources (2x their last interval, with a
// floor of +2s for very tight polling loops) while falling back to a fixed
// 30s grace period for one-shot accesses that have never been pinged.
func maxEvictionDuration(a Access) time.Duration {
	previous, ok := a.ElapsedFromPrevious()
	if !ok {
		return 30 * time.Second
	}
	if previous < 2*time.Second {
		return previous + 2*time.Second
	}
	return previous * 2
}

// shouldEvict reports whether a is stale under the adaptive TTL rule.
func shouldEvict(a Access, now time.Time) bool {
	return a.Elapsed(now) > maxEvictionDuration(a)
}
