package records

// RelationshipType classifies how the user knows a connection.
type RelationshipType string

const (
	RelationshipColleague     RelationshipType = "colleague"
	RelationshipRecruiter     RelationshipType = "recruiter"
	RelationshipHiringManager RelationshipType = "hiring_manager"
	RelationshipReferral      RelationshipType = "referral"
	RelationshipFriend        RelationshipType = "friend"
	RelationshipAlumni        RelationshipType = "alumni"
	RelationshipOther         RelationshipType = "other"
)

// Relationship strength scale.
const (
	MinRelationshipStrength     = 1
	MaxRelationshipStrength     = 5
	DefaultRelationshipStrength = 2
)

// ContactEntry is one logged interaction with a connection.
type ContactEntry struct {
	Date   int64  `json:"date"`
	Method string `json:"method"`
	Notes  string `json:"notes,omitempty"`
}

// Connection is a person in the user's network. Fields introduced in
// generation 3 are pointers (or a nil slice) so that "absent" can be told
// apart from a stored zero value.
type Connection struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Company    string   `json:"company,omitempty"`
	Role       string   `json:"role,omitempty"`
	PostingIDs []string `json:"postingIds,omitempty"`

	Email                *string           `json:"email,omitempty"`
	LinkedInURL          *string           `json:"linkedInUrl,omitempty"`
	RelationshipType     *RelationshipType `json:"relationshipType,omitempty"`
	HowWeMet             *string           `json:"howWeMet,omitempty"`
	RelationshipStrength *int              `json:"relationshipStrength,omitempty"`
	Notes                *string           `json:"notes,omitempty"`
	ContactHistory       []ContactEntry    `json:"contactHistory"`
	DateAdded            *int64            `json:"dateAdded,omitempty"`
	DateModified         *int64            `json:"dateModified,omitempty"`

	// Deprecated: generation 2 name for Notes. Cleared by the v3 backfill.
	RelationshipNotes *string `json:"relationshipNotes,omitempty"`

	Extra Extra `json:"-"`
}

func (c Connection) MarshalJSON() ([]byte, error) {
	type alias Connection
	return marshalWithExtra(alias(c), c.Extra)
}

func (c *Connection) UnmarshalJSON(data []byte) error {
	type alias Connection
	var a alias
	extra, err := unmarshalKnown(data, &a)
	if err != nil {
		return err
	}
	*c = Connection(a)
	c.Extra = extra
	return nil
}

// Clone returns a deep copy of c.
func (c Connection) Clone() Connection {
	cp := c
	cp.PostingIDs = cloneStrings(c.PostingIDs)
	cp.Email = clonePtr(c.Email)
	cp.LinkedInURL = clonePtr(c.LinkedInURL)
	cp.RelationshipType = clonePtr(c.RelationshipType)
	cp.HowWeMet = clonePtr(c.HowWeMet)
	cp.RelationshipStrength = clonePtr(c.RelationshipStrength)
	cp.Notes = clonePtr(c.Notes)
	cp.RelationshipNotes = clonePtr(c.RelationshipNotes)
	cp.DateAdded = clonePtr(c.DateAdded)
	cp.DateModified = clonePtr(c.DateModified)
	if c.ContactHistory != nil {
		cp.ContactHistory = make([]ContactEntry, len(c.ContactHistory))
		copy(cp.ContactHistory, c.ContactHistory)
	}
	cp.Extra = c.Extra.Clone()
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	cp := make([]string, len(s))
	copy(cp, s)
	return cp
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
