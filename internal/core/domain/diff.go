package domain

// Reason is a single validation failure kind.
type Reason string

const (
	ReasonNullValue       Reason = "null_value"
	ReasonNotAllowedValue Reason = "not_allowed_value"
	ReasonNotInInterval   Reason = "not_in_interval"
	ReasonUnmatchedRegex  Reason = "unmatched_regex"
	ReasonNotABool        Reason = "not_a_bool"
	ReasonNotAnInt        Reason = "not_an_int"
	ReasonNotAFloat       Reason = "not_a_float"
	ReasonNotAString      Reason = "not_a_string"
	ReasonNotAnArray      Reason = "not_an_array"
	ReasonNotAnObject     Reason = "not_an_object"
	ReasonMissingProp     Reason = "missing_prop"
	ReasonUnknownProp     Reason = "unknown_prop"
)

// Diff is a structured validation report, keyed by a dotted JSON-path-like
// locator rooted at rootKey (typically "$"). Keys preserve first-seen
// order so API responses render deterministically.
type Diff struct {
	rootKey string
	diffs   map[string][]Reason
	order   []string
}

func NewDiff(rootKey string) Diff {
	return Diff{rootKey: rootKey, diffs: map[string][]Reason{}}
}

func (d Diff) RootKey() string { return d.rootKey }

// Diffs returns the key -> reasons mapping.
func (d Diff) Diffs() map[string][]Reason { return d.diffs }

// Keys returns the diff keys in the order they were first recorded.
func (d Diff) Keys() []string { return d.order }

func (d Diff) IsEmpty() bool { return len(d.diffs) == 0 }

// Add records a reason at rootKey, or at rootKey+"."+key when key is set.
func (d *Diff) Add(reason Reason, key *string) {
	full := d.rootKey
	if key != nil {
		full = d.rootKey + "." + *key
	}
	if _, ok := d.diffs[full]; !ok {
		d.order = append(d.order, full)
	}
	d.diffs[full] = append(d.diffs[full], reason)
}

// Merge folds a child Diff into this one, prefixing every child key with
// this Diff's root key.
func (d *Diff) Merge(child Diff) {
	for _, key := range child.order {
		full := d.rootKey + "." + key
		if _, ok := d.diffs[full]; !ok {
			d.order = append(d.order, full)
		}
		d.diffs[full] = append(d.diffs[full], child.diffs[key]...)
	}
}
