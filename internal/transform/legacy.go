// Package transform maps stored records from one schema generation to the
// next. Every function is pure: the current time is passed in, nothing is read
// from or written to the store.
package transform

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/jobtrail/internal/records"
)

// legacyIDNamespace seeds ids derived for legacy records stored without one.
var legacyIDNamespace = uuid.MustParse("8f6f0a36-3c3a-4d52-9a57-3d1c0e6b9a21")

// LegacyToPosting converts a generation-1 record into a Posting, falling back
// to the current time for an unreadable dateAdded.
func LegacyToPosting(rec records.LegacyRecord) records.Posting {
	return LegacyToPostingAt(rec, time.Now())
}

// LegacyToPostingAt is LegacyToPosting with an explicit fallback time.
func LegacyToPostingAt(rec records.LegacyRecord, now time.Time) records.Posting {
	added, ok := ParseTimestamp(rec.DateAdded)
	if !ok {
		added = now.UnixMilli()
	}

	status, _ := MapLegacyStatus(rec.Status)

	tags := make([]string, len(rec.Tags))
	copy(tags, rec.Tags)

	p := records.Posting{
		ID:          rec.ID,
		URL:         rec.URL,
		Company:     rec.Company,
		Title:       rec.Title,
		Location:    rec.Location,
		Description: rec.Description,
		Salary:      rec.Salary,
		Status:      status,
		Interest:    legacyInterest(rec),
		Tags:        tags,
		Notes:       rec.Notes,
		// The real modification time of legacy data is unknown.
		DateAdded:     added,
		DateModified:  added,
		ConnectionIDs: []string{},
		Extra:         rec.Extra.Clone(),
	}

	if p.ID == "" {
		p.ID = deriveLegacyID(rec)
	}

	if applied, ok := ParseTimestamp(rec.DateApplied); ok {
		p.DateApplied = &applied
	}

	return p
}

// deriveLegacyID returns an id that is stable for identical record content, so
// re-running a migration over the same data yields the same ids.
func deriveLegacyID(rec records.LegacyRecord) string {
	b, err := json.Marshal(rec)
	if err != nil {
		b = []byte(rec.URL + "\x00" + rec.Company + "\x00" + rec.Title)
	}
	return uuid.NewSHA1(legacyIDNamespace, b).String()
}

func legacyInterest(rec records.LegacyRecord) int {
	if rec.Interest == nil && rec.Priority != nil {
		return MapPriorityToInterest(*rec.Priority)
	}
	return MapLegacyInterest(rec.Interest)
}

// MapLegacyInterest rescales a 0-5 legacy rating (0 = unrated) onto 1-5.
// 0 and 1 both read as 2, 2 and 3 both read as 3.
func MapLegacyInterest(interest *int) int {
	if interest == nil {
		return records.DefaultInterest
	}
	switch v := *interest; {
	case v <= 1:
		return 2
	case v == 2, v == 3:
		return 3
	case v == 4:
		return 4
	default:
		return 5
	}
}

// MapPriorityToInterest converts the 1-3 priority field that predates interest.
// Values below 1 read as 1 and values above 3 read as 3.
func MapPriorityToInterest(priority int) int {
	switch {
	case priority <= 1:
		return 2
	case priority == 2:
		return 3
	default:
		return 5
	}
}

var legacyStatusAliases = map[string]records.Status{
	"offer":       records.StatusOffered,
	"interview":   records.StatusInterviewing,
	"interviewed": records.StatusInterviewing,
	"declined":    records.StatusRejected,
	"wishlist":    records.StatusSaved,
	"bookmarked":  records.StatusSaved,
}

// MapLegacyStatus maps a legacy status onto the current enum. Known values map
// 1:1. Anything else is coerced to the closest status (case and spacing
// ignored, a few historical spellings recognised) or to saved; ok is false
// whenever coercion happened.
func MapLegacyStatus(s records.LegacyStatus) (records.Status, bool) {
	if s.Valid() {
		return records.Status(s), true
	}
	// An unset status is the default, not an unknown value.
	if strings.TrimSpace(string(s)) == "" {
		return records.StatusSaved, true
	}
	norm := strings.ToLower(strings.TrimSpace(string(s)))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if st := records.Status(norm); st.Valid() {
		return st, false
	}
	if st, ok := legacyStatusAliases[norm]; ok {
		return st, false
	}
	return records.StatusSaved, false
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// maxEpochMillis bounds epoch values that fit in an int64 millisecond count.
const maxEpochMillis = float64(math.MaxInt64)

// epochSecondsCutoff separates epoch seconds from epoch milliseconds: 1e11
// seconds is in the year 5138, 1e11 milliseconds is in 1973.
const epochSecondsCutoff = 1e11

// ParseTimestamp reads a legacy date as epoch milliseconds. Numbers (and
// numeric strings) are epoch values; other strings are tried as ISO-8601.
// Zone-less layouts are read as UTC.
func ParseTimestamp(ts records.Timestamp) (int64, bool) {
	s := strings.TrimSpace(ts.String())
	if s == "" {
		return 0, false
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		if math.Abs(n) < epochSecondsCutoff {
			n *= 1000
		}
		// float64(MaxInt64) rounds up to 2^63, so it is itself out of range.
		if n >= maxEpochMillis || n < -maxEpochMillis {
			return 0, false
		}
		return int64(n), true
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}
