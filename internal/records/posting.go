package records

// Status is the current-generation posting status.
type Status string

const (
	StatusSaved        Status = "saved"
	StatusApplied      Status = "applied"
	StatusInterviewing Status = "interviewing"
	StatusOffered      Status = "offered"
	StatusRejected     Status = "rejected"
	StatusInProgress   Status = "in_progress"
	StatusAccepted     Status = "accepted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSaved, StatusApplied, StatusInterviewing, StatusOffered,
		StatusRejected, StatusInProgress, StatusAccepted:
		return true
	}
	return false
}

// Interest bounds for current-generation postings.
const (
	MinInterest     = 1
	MaxInterest     = 5
	DefaultInterest = 2
)

// Posting is a job lead at schema generation 2 and later. Timestamps are Unix
// epoch milliseconds.
type Posting struct {
	ID             string   `json:"id"`
	URL            string   `json:"url"`
	Company        string   `json:"company"`
	CompanyLogo    string   `json:"companyLogo,omitempty"`
	Title          string   `json:"title"`
	Location       string   `json:"location"`
	Description    string   `json:"description"`
	Salary         string   `json:"salary"`
	Status         Status   `json:"status"`
	Interest       int      `json:"interest"`
	Tags           []string `json:"tags"`
	Notes          string   `json:"notes"`
	DateAdded      int64    `json:"dateAdded"`
	DateModified   int64    `json:"dateModified"`
	DateApplied    *int64   `json:"dateApplied,omitempty"`
	NextActionDate *int64   `json:"nextActionDate,omitempty"`
	ConnectionIDs  []string `json:"connectionIds"`

	Extra Extra `json:"-"`
}

func (p Posting) MarshalJSON() ([]byte, error) {
	type alias Posting
	a := alias(p)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if a.ConnectionIDs == nil {
		a.ConnectionIDs = []string{}
	}
	return marshalWithExtra(a, p.Extra)
}

func (p *Posting) UnmarshalJSON(data []byte) error {
	type alias Posting
	var a alias
	extra, err := unmarshalKnown(data, &a)
	if err != nil {
		return err
	}
	*p = Posting(a)
	p.Extra = extra
	return nil
}

// HasConnection reports whether id is linked to the posting.
func (p Posting) HasConnection(id string) bool {
	for _, c := range p.ConnectionIDs {
		if c == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of p.
func (p Posting) Clone() Posting {
	cp := p
	cp.Tags = cloneStrings(p.Tags)
	cp.ConnectionIDs = cloneStrings(p.ConnectionIDs)
	cp.DateApplied = clonePtr(p.DateApplied)
	cp.NextActionDate = clonePtr(p.NextActionDate)
	cp.Extra = p.Extra.Clone()
	return cp
}
