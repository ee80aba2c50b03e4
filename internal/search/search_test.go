package search

import (
	"net/url"
	"strings"
	"testing"
)

func TestNormalizeDatetime(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantGTE string // "" = open
		wantLTE string
		wantErr bool
	}{
		{name: "instant", in: "2020-02-01T00:00:00Z", wantGTE: "2020-02-01T00:00:00Z", wantLTE: "2020-02-01T00:00:00Z"},
		{name: "closed interval", in: "2020-01-01T00:00:00Z/2020-06-01T00:00:00Z", wantGTE: "2020-01-01T00:00:00Z", wantLTE: "2020-06-01T00:00:00Z"},
		{name: "open start dots", in: "../2020-06-01T00:00:00Z", wantLTE: "2020-06-01T00:00:00Z"},
		{name: "open start empty", in: "/2020-06-01T00:00:00Z", wantLTE: "2020-06-01T00:00:00Z"},
		{name: "open end dots", in: "2020-01-01T00:00:00Z/..", wantGTE: "2020-01-01T00:00:00Z"},
		{name: "open end empty", in: "2020-01-01T00:00:00Z/", wantGTE: "2020-01-01T00:00:00Z"},
		{name: "both open", in: "../..", wantErr: true},
		{name: "inverted", in: "2021-01-01T00:00:00Z/2020-01-01T00:00:00Z", wantErr: true},
		{name: "three parts", in: "a/b/c", wantErr: true},
		{name: "lone dots", in: "..", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeDatetime(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NormalizeDatetime(%q) expected error, got %+v", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeDatetime(%q): %v", tc.in, err)
			}
			if s := deref(got.GTE); s != tc.wantGTE {
				t.Errorf("gte = %q, want %q", s, tc.wantGTE)
			}
			if s := deref(got.LTE); s != tc.wantLTE {
				t.Errorf("lte = %q, want %q", s, tc.wantLTE)
			}
		})
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestParseSortBy(t *testing.T) {
	got, err := ParseSortBy("-properties.datetime,id,+collection")
	if err != nil {
		t.Fatal(err)
	}
	want := []SortKey{
		{Field: "properties.datetime", Direction: "desc"},
		{Field: "id", Direction: "asc"},
		{Field: "collection", Direction: "asc"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := ParseSortBy("-"); err == nil {
		t.Error("bare dash should be rejected")
	}
}

func TestParseGetBBoxAndConflicts(t *testing.T) {
	lim := Limits{Default: 10, Max: 100}

	req, err := ParseGet(url.Values{"bbox": {"-10,-10,10,10"}}, lim)
	if err != nil {
		t.Fatal(err)
	}
	if len(req.BBox) != 4 {
		t.Fatalf("bbox = %v", req.BBox)
	}

	if _, err := ParseGet(url.Values{"bbox": {"1,2,x,4"}}, lim); err == nil {
		t.Error("non-numeric bbox should be rejected")
	}

	_, err = ParseGet(url.Values{
		"bbox":       {"-10,-10,10,10"},
		"intersects": {`{"type":"Point","coordinates":[0,0]}`},
	}, lim)
	if err == nil {
		t.Error("bbox together with intersects should be rejected")
	}
}

func TestParseGetLimit(t *testing.T) {
	lim := Limits{Default: 10, Max: 100}

	req, err := ParseGet(url.Values{}, lim)
	if err != nil {
		t.Fatal(err)
	}
	if req.Limit != 10 {
		t.Errorf("default limit = %d, want 10", req.Limit)
	}

	req, err = ParseGet(url.Values{"limit": {"500"}}, lim)
	if err != nil {
		t.Fatal(err)
	}
	if req.Limit != 100 {
		t.Errorf("clamped limit = %d, want 100", req.Limit)
	}

	if _, err := ParseGet(url.Values{"limit": {"0"}}, lim); err == nil {
		t.Error("zero limit should be rejected")
	}
	if _, err := ParseGet(url.Values{"limit": {"-5"}}, lim); err == nil {
		t.Error("negative limit should be rejected")
	}
}

func TestParseGetFields(t *testing.T) {
	req, err := ParseGet(url.Values{"fields": {"+properties.datetime,-assets,properties.eo:cloud_cover"}}, Limits{Default: 10, Max: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := req.Fields.Include["properties.datetime"]; !ok {
		t.Error("missing include properties.datetime")
	}
	if _, ok := req.Fields.Include["properties.eo:cloud_cover"]; !ok {
		t.Error("unprefixed field should be an include")
	}
	if _, ok := req.Fields.Exclude["assets"]; !ok {
		t.Error("missing exclude assets")
	}
}

func TestParseGetLowersTextFilter(t *testing.T) {
	req, err := ParseGet(url.Values{"filter": {"properties.eo:cloud_cover <= 20"}}, Limits{Default: 10, Max: 100})
	if err != nil {
		t.Fatal(err)
	}
	if req.Filter == nil || req.Filter.Op != "<=" {
		t.Fatalf("filter = %+v", req.Filter)
	}
}

func TestDecodeBody(t *testing.T) {
	body := `{
		"collections": ["s2"],
		"datetime": "2020-01-01T00:00:00Z/..",
		"limit": 25,
		"sortby": [{"field": "properties.datetime", "direction": "desc"}],
		"fields": {"include": ["properties.datetime"], "exclude": ["assets"]},
		"filter-lang": "cql2-json",
		"filter": {"op": "=", "args": [{"property": "platform"}, "sentinel-2a"]}
	}`
	req, err := DecodeBody(strings.NewReader(body), Limits{Default: 10, Max: 100})
	if err != nil {
		t.Fatal(err)
	}
	if req.Limit != 25 {
		t.Errorf("limit = %d", req.Limit)
	}
	if req.Datetime == nil || req.Datetime.GTE == nil || req.Datetime.LTE != nil {
		t.Errorf("datetime = %+v", req.Datetime)
	}
	if len(req.Sort) != 1 || req.Sort[0].Direction != "desc" {
		t.Errorf("sort = %+v", req.Sort)
	}
	if req.Filter == nil || req.Filter.Op != "=" {
		t.Errorf("filter = %+v", req.Filter)
	}

	if _, err := DecodeBody(strings.NewReader(`{"sortby":[{"field":"id","direction":"sideways"}]}`), Limits{Default: 10, Max: 100}); err == nil {
		t.Error("bad sort direction should be rejected")
	}
}
