package transform

import (
	"time"

	"github.com/kalambet/jobtrail/internal/records"
)

// fieldDefault fills one generation-3 field when absent reports true.
// Present values, including zero values, are never touched.
type fieldDefault struct {
	field  string
	absent func(c *records.Connection) bool
	fill   func(c *records.Connection, now int64)
}

var connectionV3Defaults = []fieldDefault{
	{
		field:  "email",
		absent: func(c *records.Connection) bool { return c.Email == nil },
		fill:   func(c *records.Connection, _ int64) { c.Email = records.Ptr("") },
	},
	{
		field:  "linkedInUrl",
		absent: func(c *records.Connection) bool { return c.LinkedInURL == nil },
		fill:   func(c *records.Connection, _ int64) { c.LinkedInURL = records.Ptr("") },
	},
	{
		field:  "relationshipType",
		absent: func(c *records.Connection) bool { return c.RelationshipType == nil },
		fill:   func(c *records.Connection, _ int64) { c.RelationshipType = records.Ptr(records.RelationshipOther) },
	},
	{
		field:  "howWeMet",
		absent: func(c *records.Connection) bool { return c.HowWeMet == nil },
		fill:   func(c *records.Connection, _ int64) { c.HowWeMet = records.Ptr("") },
	},
	{
		field:  "relationshipStrength",
		absent: func(c *records.Connection) bool { return c.RelationshipStrength == nil },
		fill: func(c *records.Connection, _ int64) {
			c.RelationshipStrength = records.Ptr(records.DefaultRelationshipStrength)
		},
	},
	{
		// notes replaces relationshipNotes: an empty notes still takes the
		// old field's text.
		field: "notes",
		absent: func(c *records.Connection) bool {
			return c.Notes == nil || (*c.Notes == "" && c.RelationshipNotes != nil && *c.RelationshipNotes != "")
		},
		fill: func(c *records.Connection, _ int64) {
			if c.RelationshipNotes != nil {
				c.Notes = records.Ptr(*c.RelationshipNotes)
				return
			}
			c.Notes = records.Ptr("")
		},
	},
	{
		field:  "contactHistory",
		absent: func(c *records.Connection) bool { return c.ContactHistory == nil },
		fill:   func(c *records.Connection, _ int64) { c.ContactHistory = []records.ContactEntry{} },
	},
	{
		field:  "dateAdded",
		absent: func(c *records.Connection) bool { return c.DateAdded == nil },
		fill:   func(c *records.Connection, now int64) { c.DateAdded = records.Ptr(now) },
	},
	{
		field:  "dateModified",
		absent: func(c *records.Connection) bool { return c.DateModified == nil },
		fill:   func(c *records.Connection, now int64) { c.DateModified = records.Ptr(now) },
	},
}

// BackfillConnectionV3 returns a copy of c with every generation-3 field set.
// relationshipNotes is dropped once notes carries its text; when notes already
// holds something else it is kept.
func BackfillConnectionV3(c records.Connection) records.Connection {
	return BackfillConnectionV3At(c, time.Now())
}

// BackfillConnectionV3At is BackfillConnectionV3 with an explicit time for
// absent dates.
func BackfillConnectionV3At(c records.Connection, now time.Time) records.Connection {
	out := c.Clone()
	ms := now.UnixMilli()
	for _, d := range connectionV3Defaults {
		if d.absent(&out) {
			d.fill(&out, ms)
		}
	}
	if relationshipNotesFolded(out) {
		out.RelationshipNotes = nil
	}
	return out
}

// relationshipNotesFolded reports whether c's relationshipNotes text is empty
// or already present in notes.
func relationshipNotesFolded(c records.Connection) bool {
	if c.RelationshipNotes == nil {
		return false
	}
	rel := *c.RelationshipNotes
	return rel == "" || (c.Notes != nil && *c.Notes == rel)
}

// NeedsBackfillV3 reports whether BackfillConnectionV3 would change c.
func NeedsBackfillV3(c records.Connection) bool {
	if len(MissingV3Fields(c)) > 0 {
		return true
	}
	return relationshipNotesFolded(c)
}

// MissingV3Fields lists the generation-3 fields BackfillConnectionV3 would fill.
func MissingV3Fields(c records.Connection) []string {
	var missing []string
	for _, d := range connectionV3Defaults {
		if d.absent(&c) {
			missing = append(missing, d.field)
		}
	}
	return missing
}
