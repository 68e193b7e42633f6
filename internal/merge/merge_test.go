package merge

import (
	"reflect"
	"testing"
)

type item struct {
	url  string
	note string
}

func byURL(i item) string { return i.url }

func TestByNaturalKey(t *testing.T) {
	existing := []item{{url: "a", note: "old"}}
	incoming := []item{{url: "a", note: "new"}, {url: "b"}}

	res := ByNaturalKey(existing, incoming, byURL)

	want := []item{{url: "a", note: "old"}, {url: "b"}}
	if !reflect.DeepEqual(res.Merged, want) {
		t.Errorf("Merged = %+v, want %+v", res.Merged, want)
	}
	if res.Inserted != 1 || res.Skipped != 1 {
		t.Errorf("Inserted/Skipped = %d/%d, want 1/1", res.Inserted, res.Skipped)
	}
}

func TestByNaturalKey_PreservesOrder(t *testing.T) {
	existing := []item{{url: "z"}, {url: "m"}}
	incoming := []item{{url: "c"}, {url: "m"}, {url: "a"}, {url: "b"}}

	res := ByNaturalKey(existing, incoming, byURL)

	var got []string
	for _, i := range res.Merged {
		got = append(got, i.url)
	}
	want := []string{"z", "m", "c", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestByNaturalKey_DuplicatesWithinIncoming(t *testing.T) {
	incoming := []item{{url: "a", note: "first"}, {url: "a", note: "second"}}

	res := ByNaturalKey(nil, incoming, byURL)

	if len(res.Merged) != 1 || res.Merged[0].note != "first" {
		t.Errorf("Merged = %+v, want only the first occurrence", res.Merged)
	}
	if res.Inserted != 1 || res.Skipped != 1 {
		t.Errorf("Inserted/Skipped = %d/%d, want 1/1", res.Inserted, res.Skipped)
	}
}

func TestByNaturalKey_Empty(t *testing.T) {
	res := ByNaturalKey[item, string](nil, nil, byURL)
	if res.Merged == nil {
		t.Error("Merged should be an empty, non-nil slice")
	}
	if len(res.Merged) != 0 || res.Inserted != 0 || res.Skipped != 0 {
		t.Errorf("res = %+v", res)
	}
}

func TestByNaturalKey_DoesNotMutateInputs(t *testing.T) {
	existing := make([]item, 1, 4)
	existing[0] = item{url: "a"}
	incoming := []item{{url: "b"}, {url: "c"}}

	res := ByNaturalKey(existing, incoming, byURL)
	res.Merged[0].note = "changed"

	if existing[0].note != "" {
		t.Error("existing was modified through the result")
	}
	if got := existing[:cap(existing)][1]; got.url != "" {
		t.Errorf("existing backing array was written: %+v", got)
	}
	if len(incoming) != 2 || incoming[0].url != "b" {
		t.Errorf("incoming modified: %+v", incoming)
	}
}

func TestByNaturalKey_Idempotent(t *testing.T) {
	existing := []item{{url: "a"}}
	incoming := []item{{url: "b"}, {url: "c"}}

	first := ByNaturalKey(existing, incoming, byURL)
	second := ByNaturalKey(first.Merged, incoming, byURL)

	if !reflect.DeepEqual(first.Merged, second.Merged) {
		t.Errorf("second merge changed the list: %+v", second.Merged)
	}
	if second.Inserted != 0 || second.Skipped != 2 {
		t.Errorf("second Inserted/Skipped = %d/%d, want 0/2", second.Inserted, second.Skipped)
	}
}
