package domain

import "time"

// Config is a named, validated Value owned by a Schema. It carries its own
// password gate and access history; every mutation bumps Timestamps and
// Version.
type Config struct {
	id         Id
	name       string
	data       Value
	valid      bool
	password   *Password
	accesses   []Access
	timestamps Timestamps
	version    Version
}

// NewConfig builds a Config from already-validated components, used when
// reconstituting from storage.
func NewConfig(id Id, name string, data Value, valid bool, password *Password, accesses []Access, timestamps Timestamps, version Version) (Config, error) {
	if name == "" {
		return Config{}, NewError(CodeEmptyName, "config name must not be empty")
	}
	return Config{
		id: id, name: name, data: data, valid: valid, password: password,
		accesses: accesses, timestamps: timestamps, version: version,
	}, nil
}

// CreateConfig builds a brand new Config, hashing password if present.
func CreateConfig(id Id, name string, data Value, valid bool, password *Password, now time.Time) (Config, error) {
	var hashed *Password
	if password != nil {
		h, err := password.Hash()
		if err != nil {
			return Config{}, err
		}
		hashed = &h
	}
	return NewConfig(id, name, data, valid, hashed, nil, CreateTimestamps(now), InitVersion())
}

func (c Config) ID() Id                    { return c.id }
func (c Config) Name() string              { return c.name }
func (c Config) Data() Value                { return c.data }
func (c Config) IsValid() bool              { return c.valid }
func (c Config) Password() *Password        { return c.password }
func (c Config) Accesses() []Access         { return c.accesses }
func (c Config) Timestamps() Timestamps     { return c.timestamps }
func (c Config) Version() Version           { return c.version }

// CanAccess reports whether raw grants access: true when the Config has no
// password, or when raw is present and matches the stored hash.
func (c Config) CanAccess(raw *Password) bool {
	if c.password == nil {
		return true
	}
	if raw == nil {
		return false
	}
	return c.password.Compare(*raw)
}

// ChangeData replaces Data and the computed validity flag.
func (c *Config) ChangeData(data Value, valid bool, now time.Time) {
	c.data = data
	c.valid = valid
	c.timestamps = c.timestamps.Update(now)
	c.version = c.version.Incr()
}

// MarkAsInvalid flips Valid to false without touching Data, used when a
// schema's root prop changes under an existing config.
func (c *Config) MarkAsInvalid(now time.Time) {
	c.valid = false
	c.timestamps = c.timestamps.Update(now)
	c.version = c.version.Incr()
}

// ChangePassword requires CanAccess(oldPassword) and stores the hash of
// newPassword.
func (c *Config) ChangePassword(oldPassword *Password, newPassword Password, now time.Time) error {
	if !c.CanAccess(oldPassword) {
		return NewError(CodeUnauthorized, "password does not match")
	}
	hashed, err := newPassword.Hash()
	if err != nil {
		return err
	}
	c.password = &hashed
	c.timestamps = c.timestamps.Update(now)
	c.version = c.version.Incr()
	return nil
}

// DeletePassword requires CanAccess(password) and clears the password gate.
func (c *Config) DeletePassword(password *Password, now time.Time) error {
	if !c.CanAccess(password) {
		return NewError(CodeUnauthorized, "password does not match")
	}
	c.password = nil
	c.timestamps = c.timestamps.Update(now)
	c.version = c.version.Incr()
	return nil
}

// RegisterAccess replaces an equal (same source+instance) access in place
// with the existing entry pinged at now (its old Timestamp becomes
// Previous), or appends access otherwise. Returns the recorded entry.
func (c *Config) RegisterAccess(access Access, now time.Time) Access {
	for i, existing := range c.accesses {
		if existing.Equal(access) {
			pinged := existing.Ping(now)
			c.accesses[i] = pinged
			return pinged
		}
	}
	c.accesses = append(c.accesses, access)
	return access
}

// CleanOldAccesses removes accesses stale under the adaptive TTL rule (see
// shouldEvict) and returns the removed entries in reverse-iteration order,
// so index-based removal never has to recompute shifted indices.
func (c *Config) CleanOldAccesses(now time.Time) []Access {
	var toRemove []int
	for i, a := range c.accesses {
		if shouldEvict(a, now) {
			toRemove = append(toRemove, i)
		}
	}

	removed := make([]Access, 0, len(toRemove))
	for i := len(toRemove) - 1; i >= 0; i-- {
		idx := toRemove[i]
		removed = append(removed, c.accesses[idx])
		c.accesses = append(c.accesses[:idx], c.accesses[idx+1:]...)
	}
	return removed
}
