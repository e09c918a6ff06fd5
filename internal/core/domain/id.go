package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Id is a non-empty identifier. Equality is byte-identical.
type Id struct {
	value string
}

func NewId(value string) (Id, error) {
	if value == "" {
		return Id{}, NewError(CodeEmptyID, "id must not be empty")
	}
	return Id{value: value}, nil
}

var slugNonWord = regexp.MustCompile(`[^a-z0-9]+`)

// SlugId produces a lowercase, hyphen-delimited Id from an arbitrary name.
func SlugId(name string) (Id, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugNonWord.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return NewId(s)
}

// GenerateId emits a random identifier in textual UUIDv4 form.
func GenerateId() Id {
	id, _ := NewId(uuid.New().String())
	return id
}

func (id Id) Value() string { return id.value }

func (id Id) String() string { return id.value }

func (id Id) Equal(other Id) bool { return id.value == other.value }
