package domain

// DefaultLimit and MaxLimit bound SchemaRepository.Find's limit parameter:
// offset defaults to 0, limit defaults to DefaultLimit and is hard-capped
// at MaxLimit.
const (
	DefaultLimit = 10
	MaxLimit     = 25
)

// Page is a bounded slice of a larger collection.
type Page[T any] struct {
	Offset int
	Limit  int
	Total  int
	Data   []T
}

// NewPage rejects a data slice longer than limit.
func NewPage[T any](offset, limit, total int, data []T) (Page[T], error) {
	if len(data) > limit {
		return Page[T]{}, NewError(CodePageOutOfRange, "page data exceeds limit")
	}
	return Page[T]{Offset: offset, Limit: limit, Total: total, Data: data}, nil
}

// NormalizeLimit applies the default/cap rule described in the
// SchemaRepository contract.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
