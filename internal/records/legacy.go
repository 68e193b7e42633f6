package records

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// LegacyStatus is the generation-1 application status. Every value is also a
// valid Status.
type LegacyStatus string

const (
	LegacySaved        LegacyStatus = "saved"
	LegacyApplied      LegacyStatus = "applied"
	LegacyInterviewing LegacyStatus = "interviewing"
	LegacyOffered      LegacyStatus = "offered"
	LegacyRejected     LegacyStatus = "rejected"
)

// Valid reports whether s is one of the generation-1 statuses.
func (s LegacyStatus) Valid() bool {
	switch s {
	case LegacySaved, LegacyApplied, LegacyInterviewing, LegacyOffered, LegacyRejected:
		return true
	}
	return false
}

// LegacyRecord is a generation-1 job application. It is only ever read,
// transformed into a Posting, and archived.
type LegacyRecord struct {
	ID          string       `json:"id"`
	URL         string       `json:"url"`
	Company     string       `json:"company"`
	Title       string       `json:"title"`
	Location    string       `json:"location"`
	Description string       `json:"description"`
	Salary      string       `json:"salary"`
	Status      LegacyStatus `json:"status"`
	Interest    *int         `json:"interest,omitempty"` // 0-5, 0 = unrated
	Priority    *int         `json:"priority,omitempty"` // 1-3, predates interest
	Tags        []string     `json:"tags"`
	Notes       string       `json:"notes"`
	DateAdded   Timestamp    `json:"dateAdded"`
	DateApplied Timestamp    `json:"dateApplied"`

	Extra Extra `json:"-"`
}

func (r LegacyRecord) MarshalJSON() ([]byte, error) {
	type alias LegacyRecord
	return marshalWithExtra(alias(r), r.Extra)
}

func (r *LegacyRecord) UnmarshalJSON(data []byte) error {
	type alias LegacyRecord
	var a alias
	extra, err := unmarshalKnown(data, &a)
	if err != nil {
		return err
	}
	*r = LegacyRecord(a)
	r.Extra = extra
	return nil
}

// Timestamp is a legacy date as it was written: an ISO-8601 string, a numeric
// epoch, or nothing. The literal text is kept; interpretation happens in the
// transform package.
type Timestamp struct {
	raw     string
	numeric bool
}

// TimestampString returns a Timestamp written as a JSON string.
func TimestampString(s string) Timestamp { return Timestamp{raw: s} }

// TimestampNumber returns a Timestamp written as a JSON number.
func TimestampNumber(n int64) Timestamp {
	return Timestamp{raw: strconv.FormatInt(n, 10), numeric: true}
}

func (t Timestamp) String() string { return t.raw }

// Numeric reports whether the value was stored as a JSON number.
func (t Timestamp) Numeric() bool { return t.numeric }

func (t Timestamp) IsZero() bool { return t.raw == "" }

// UnmarshalJSON accepts any JSON value. Strings and numbers are kept as
// written; anything else is kept as raw text and will fail to parse later.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*t = Timestamp{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Timestamp{raw: s}
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*t = Timestamp{raw: string(data), numeric: true}
	default:
		*t = Timestamp{raw: string(data)}
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case t.raw == "":
		return []byte("null"), nil
	case t.numeric:
		return []byte(t.raw), nil
	default:
		return json.Marshal(t.raw)
	}
}
