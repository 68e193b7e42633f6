package records

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		raw     string
		numeric bool
	}{
		{"iso string", `"2023-04-05T10:00:00Z"`, "2023-04-05T10:00:00Z", false},
		{"epoch number", `1680688800000`, "1680688800000", true},
		{"null", `null`, "", false},
		{"garbage string", `"not-a-date"`, "not-a-date", false},
		{"boolean", `true`, "true", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.input), &ts); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if ts.String() != tt.raw {
				t.Errorf("raw = %q, want %q", ts.String(), tt.raw)
			}
			if ts.Numeric() != tt.numeric {
				t.Errorf("numeric = %v, want %v", ts.Numeric(), tt.numeric)
			}
		})
	}
}

func TestLegacyRecordDecode(t *testing.T) {
	raw := `{"id":"a1","url":"https://x.test/1","status":"applied","interest":4,
		"tags":["go","remote"],"dateAdded":1680688800000,"source":"extension"}`

	var r LegacyRecord
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.Interest == nil || *r.Interest != 4 {
		t.Errorf("Interest = %v, want 4", r.Interest)
	}
	if r.Priority != nil {
		t.Errorf("Priority = %v, want nil", *r.Priority)
	}
	if !r.DateAdded.Numeric() {
		t.Error("DateAdded should be numeric")
	}
	if !r.DateApplied.IsZero() {
		t.Errorf("DateApplied = %q, want zero", r.DateApplied)
	}
	if string(r.Extra["source"]) != `"extension"` {
		t.Errorf("Extra[source] = %s", r.Extra["source"])
	}
}

func TestPostingPreservesUnknownFields(t *testing.T) {
	raw := `{"id":"p1","url":"https://x.test","status":"saved","interest":3,"tags":[],
		"dateAdded":1,"dateModified":2,"connectionIds":[],"archived":true,"color":{"h":120}}`

	var p Posting
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(p.Extra) != 2 {
		t.Fatalf("Extra = %v, want 2 entries", p.Extra)
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back map[string]json.RawMessage
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-decoding: %v", err)
	}
	if string(back["archived"]) != "true" {
		t.Errorf("archived = %s, want true", back["archived"])
	}
	if string(back["color"]) != `{"h":120}` {
		t.Errorf("color = %s", back["color"])
	}
	if string(back["interest"]) != "3" {
		t.Errorf("interest = %s, want 3", back["interest"])
	}
}

func TestPostingMarshalEmptySlices(t *testing.T) {
	out, err := json.Marshal(Posting{ID: "p1"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `"tags":[]`) || !strings.Contains(s, `"connectionIds":[]`) {
		t.Errorf("nil slices should encode as []: %s", s)
	}
	if strings.Contains(s, "dateApplied") || strings.Contains(s, "nextActionDate") {
		t.Errorf("unset optional dates should be omitted: %s", s)
	}
}

func TestConnectionAbsentVersusZero(t *testing.T) {
	var c Connection
	if err := json.Unmarshal([]byte(`{"id":"c1","name":"Ada","email":"","relationshipNotes":"met at meetup"}`), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.Email == nil || *c.Email != "" {
		t.Errorf("Email should be present and empty, got %v", c.Email)
	}
	if c.LinkedInURL != nil {
		t.Errorf("LinkedInURL should be absent")
	}
	if c.ContactHistory != nil {
		t.Errorf("ContactHistory should be absent")
	}
	if c.RelationshipNotes == nil || *c.RelationshipNotes != "met at meetup" {
		t.Errorf("RelationshipNotes = %v", c.RelationshipNotes)
	}
}

func TestConnectionCloneIsDeep(t *testing.T) {
	c := Connection{
		ID:             "c1",
		Notes:          Ptr("original"),
		PostingIDs:     []string{"p1"},
		ContactHistory: []ContactEntry{{Date: 1, Method: "email"}},
	}
	cp := c.Clone()
	*cp.Notes = "changed"
	cp.PostingIDs[0] = "p2"
	cp.ContactHistory[0].Method = "call"

	if *c.Notes != "original" || c.PostingIDs[0] != "p1" || c.ContactHistory[0].Method != "email" {
		t.Errorf("clone shares memory with original: %+v", c)
	}
}

func TestDecodeList(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		items, err := DecodeList[Posting]([]byte(raw))
		if err != nil {
			t.Fatalf("DecodeList(%q): %v", raw, err)
		}
		if len(items) != 0 {
			t.Errorf("DecodeList(%q) = %v, want empty", raw, items)
		}
	}

	if _, err := DecodeList[Posting]([]byte(`{"not":"a list"}`)); err == nil {
		t.Error("expected error for non-array value")
	}

	items, err := DecodeList[Connection]([]byte(`[{"id":"c1","name":"A"},{"id":"c2","name":"B"}]`))
	if err != nil {
		t.Fatalf("DecodeList: %v", err)
	}
	if len(items) != 2 || items[1].Name != "B" {
		t.Errorf("items = %+v", items)
	}
}

func TestEncodeListNil(t *testing.T) {
	out, err := EncodeList[Connection](nil)
	if err != nil {
		t.Fatalf("EncodeList: %v", err)
	}
	if string(out) != "[]" {
		t.Errorf("EncodeList(nil) = %s, want []", out)
	}
}

func TestNaturalKey(t *testing.T) {
	tests := []struct {
		name string
		p    Posting
		want string
	}{
		{"plain", Posting{URL: "https://jobs.example.com/42"}, "https://jobs.example.com/42"},
		{"host case", Posting{URL: "HTTPS://Jobs.Example.COM/42"}, "https://jobs.example.com/42"},
		{"trailing slash", Posting{URL: "https://jobs.example.com/42/"}, "https://jobs.example.com/42"},
		{"fragment", Posting{URL: "https://jobs.example.com/42#apply"}, "https://jobs.example.com/42"},
		{"whitespace", Posting{URL: "  https://jobs.example.com/42\n"}, "https://jobs.example.com/42"},
		{"query kept", Posting{URL: "https://x.test/view?id=7"}, "https://x.test/view?id=7"},
		{"path case kept", Posting{URL: "https://x.test/Jobs/A"}, "https://x.test/Jobs/A"},
		{"port kept", Posting{URL: "http://localhost:8080/a"}, "http://localhost:8080/a"},
		{"idn host", Posting{URL: "https://bücher.example/jobs"}, "https://xn--bcher-kva.example/jobs"},
		{"ipv6 with port", Posting{URL: "http://[::1]:8080/x"}, "http://[::1]:8080/x"},
		{"ipv6 without port", Posting{URL: "http://[::ABCD]/x"}, "http://[::abcd]/x"},
		{"encoded slash kept", Posting{URL: "https://x.test/a%2Fb"}, "https://x.test/a%2Fb"},
		{"encoded slash with trailing slash", Posting{URL: "https://x.test/a%2Fb/"}, "https://x.test/a%2Fb"},
		{"not a url", Posting{URL: "Acme careers page"}, "Acme careers page"},
		{"no url", Posting{ID: "p1"}, "id:p1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.NaturalKey(); got != tt.want {
				t.Errorf("NaturalKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNaturalKey_EncodedSlashIsDistinct(t *testing.T) {
	encoded := Posting{URL: "https://x.test/a%2Fb"}.NaturalKey()
	plain := Posting{URL: "https://x.test/a/b"}.NaturalKey()
	if encoded == plain {
		t.Errorf("both URLs normalize to %q", plain)
	}
}
