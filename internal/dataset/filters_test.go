package dataset

import (
	"errors"
	"reflect"
	"testing"

	"github.com/heimdex/dsync/internal/remote"
)

func TestNormalize(t *testing.T) {
	q, err := Normalize(Filters{
		"item_names": Scalar("a.jpg"),
		"types":      List("image", "video"),
		"statuses":   List("new"),
		"unknown":    Scalar("x"),
	}, "")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(q.Filters) != 3 {
		t.Fatalf("filters = %v", q.Filters)
	}
	if v := q.Filters["types"]; v.IsList() || v.String() != "image,video" {
		t.Errorf("types = %+v, want scalar image,video", v)
	}
	if v := q.Filters["statuses"]; !v.IsList() {
		t.Errorf("statuses should stay a list")
	}
	if v := q.Filters["item_names"]; v.IsList() || v.String() != "a.jpg" {
		t.Errorf("item_names = %+v", v)
	}
	if q.Sort != nil {
		t.Errorf("sort = %v, want nil", q.Sort)
	}
}

func TestNormalize_FilenamesAlias(t *testing.T) {
	q, err := Normalize(Filters{"filenames": List("x.png")}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := q.Filters["filenames"]; ok {
		t.Error("filenames should not be sent")
	}
	if got := q.Filters["item_names"].Values(); !reflect.DeepEqual(got, []string{"x.png"}) {
		t.Errorf("item_names = %v", got)
	}
}

func TestQuery_Values(t *testing.T) {
	q, _ := Normalize(Filters{"statuses": List("new", "annotate"), "path": Scalar("/a")}, "updated_at:descending")
	v := q.Values()
	if got := v["statuses"]; !reflect.DeepEqual(got, []string{"new", "annotate"}) {
		t.Errorf("statuses = %v", got)
	}
	if v.Get("path") != "/a" {
		t.Errorf("path = %q", v.Get("path"))
	}
	if v.Get("sort[updated_at]") != "desc" {
		t.Errorf("sort = %v", v)
	}
}

func TestFiltersFromMap(t *testing.T) {
	f := FiltersFromMap(map[string]any{
		"statuses": []string{"new", "complete"},
		"path":     "/folder",
		"ids":      []any{1, 2},
		"priority": 3,
	})
	if !f["statuses"].IsList() || len(f["statuses"].Values()) != 2 {
		t.Errorf("statuses = %+v", f["statuses"])
	}
	if f["path"].IsList() || f["path"].String() != "/folder" {
		t.Errorf("path = %+v", f["path"])
	}
	if got := f["ids"].Values(); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("ids = %v", got)
	}
	if f["priority"].String() != "3" {
		t.Errorf("priority = %+v", f["priority"])
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want Sort
	}{
		{"name", Sort{"name", Ascending}},
		{"name:asc", Sort{"name", Ascending}},
		{"name:ascending", Sort{"name", Ascending}},
		{"updated_at:desc", Sort{"updated_at", Descending}},
		{"priority:Descending", Sort{"priority", Descending}},
		{"  name:DESC ", Sort{"name", Descending}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSort(tt.in)
			if err != nil {
				t.Fatalf("ParseSort() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSort() = %+v, want %+v", got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "Name", "name:sideways", "na-me", "name desc"} {
		_, err := ParseSort(bad)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("ParseSort(%q) error = %v, want ValidationError", bad, err)
		}
	}
}

func TestCursor_Immutable(t *testing.T) {
	c := NewCursor(Query{})
	next := c.WithNext("tok")

	if _, ok := c.Next(); ok {
		t.Error("WithNext modified the receiver")
	}
	if tok, ok := next.Next(); !ok || tok != "tok" {
		t.Errorf("Next() = %q, %v", tok, ok)
	}
	if c.Params(1).Has("page[from]") {
		t.Error("original cursor carries page[from]")
	}
	if next.Params(1).Get("page[from]") != "tok" {
		t.Error("advanced cursor lacks page[from]")
	}
}

func TestCursor_ParamsOverrideFilters(t *testing.T) {
	q, _ := Normalize(Filters{"path": Scalar("/a")}, "")
	v := NewCursor(q).Params(3)
	if v.Get("page[size]") != "500" || v.Get("dataset_ids") != "3" || v.Get("path") != "/a" {
		t.Errorf("Params() = %v", v)
	}
}

func TestParseItem(t *testing.T) {
	item := ParseItem(remote.Item{
		ID:     9,
		Name:   "clip.mp4",
		Status: "annotate",
		Path:   "/videos",
		Slots:  []remote.Slot{{Name: "0", Type: "video"}},
	})
	if item.ID != 9 || item.Type != "video" || item.Status != StatusInProgress {
		t.Errorf("item = %+v", item)
	}
	if item.FullPath() != "/videos/clip.mp4" {
		t.Errorf("FullPath() = %q", item.FullPath())
	}

	archived := ParseItem(remote.Item{ID: 1, Status: "complete", Archived: true})
	if archived.Status != StatusArchived {
		t.Errorf("archived item status = %v", archived.Status)
	}
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{StatusOther, StatusNew, StatusInProgress, StatusCompleted, StatusArchived} {
		b, _ := s.MarshalText()
		var got Status
		if err := got.UnmarshalText(b); err != nil || got != s {
			t.Errorf("round trip of %v = %v, %v", s, got, err)
		}
	}
	var s Status
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown status")
	}
}
