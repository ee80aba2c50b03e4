package backend

import (
	"testing"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/search"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

func TestTokenRoundTrip(t *testing.T) {
	doc := stac.Document{
		"id": "item-9",
		"properties": map[string]any{
			"datetime":       "2020-03-01T00:00:00Z",
			"eo:cloud_cover": 42.5,
		},
	}
	sort := CursorSort([]search.SortKey{
		{Field: "properties.datetime", Direction: "desc"},
		{Field: "properties.eo:cloud_cover", Direction: "asc"},
	})

	tok, err := EncodeToken(doc, sort)
	if err != nil {
		t.Fatal(err)
	}
	cur, err := DecodeToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if cur.ID != "item-9" {
		t.Errorf("id = %q", cur.ID)
	}
	if len(cur.Sort) != 3 {
		t.Fatalf("sort values = %v", cur.Sort)
	}
	if cur.Sort[0] != "2020-03-01T00:00:00Z" {
		t.Errorf("sort[0] = %v", cur.Sort[0])
	}
	if cur.Sort[1] != 42.5 {
		t.Errorf("sort[1] = %v", cur.Sort[1])
	}
	if cur.Sort[2] != "item-9" {
		t.Errorf("sort[2] = %v (id tie-break value)", cur.Sort[2])
	}
}

func TestDecodeTokenRejectsCorruption(t *testing.T) {
	doc := stac.Document{"id": "x"}
	tok, err := EncodeToken(doc, CursorSort(nil))
	if err != nil {
		t.Fatal(err)
	}

	bad := []string{
		"",
		"!!!not-base64!!!",
		"c2hvcnQ", // too short for the checksum
		tok[:len(tok)-2] + "zz",
	}
	for _, in := range bad {
		_, err := DecodeToken(in)
		if err == nil {
			t.Errorf("DecodeToken(%q) should fail", in)
			continue
		}
		if apperr.KindOf(err) != apperr.KindClient {
			t.Errorf("DecodeToken(%q) kind = %v, want client error", in, apperr.KindOf(err))
		}
	}
}

func TestCursorSortAddsIDOnce(t *testing.T) {
	got := CursorSort([]search.SortKey{{Field: "properties.datetime", Direction: "desc"}})
	if len(got) != 2 || got[1].Field != "id" || got[1].Direction != "asc" {
		t.Fatalf("sort = %+v", got)
	}
	again := CursorSort(got)
	if len(again) != 2 {
		t.Fatalf("id tie-break added twice: %+v", again)
	}
}
