package backend

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/stac-search-api/internal/apperr"
	"github.com/mohammed-shakir/stac-search-api/internal/search"
	"github.com/mohammed-shakir/stac-search-api/internal/stac"
)

// Cursor is the decoded form of a pagination token: the sort-key values of
// the last item on the previous page plus its id as the tie-break.
type Cursor struct {
	Sort []any  `json:"s"`
	ID   string `json:"i"`
}

// CursorSort appends the id tie-break to the effective sort so a cursor
// always addresses a unique position. Callers must page with the result of
// this function, not the raw request sort.
func CursorSort(sort []search.SortKey) []search.SortKey {
	for _, k := range sort {
		if k.Field == "id" {
			return sort
		}
	}
	out := make([]search.SortKey, 0, len(sort)+1)
	out = append(out, sort...)
	return append(out, search.SortKey{Field: "id", Direction: "asc"})
}

// EncodeToken builds an opaque continuation token from the last document of
// a page. The payload is JSON with an xxhash64 checksum appended, base64url
// encoded without padding.
func EncodeToken(last stac.Document, sort []search.SortKey) (string, error) {
	c := Cursor{ID: stac.DocID(last)}
	for _, k := range sort {
		v, _ := stac.Lookup(last, k.Field)
		c.Sort = append(c.Sort, v)
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return "", apperr.Backend("encode pagination token: %v", err)
	}
	sum := make([]byte, 8)
	binary.BigEndian.PutUint64(sum, xxhash.Sum64(payload))
	return base64.RawURLEncoding.EncodeToString(append(payload, sum...)), nil
}

// DecodeToken reverses EncodeToken. Any tampering or truncation fails the
// checksum and is reported as a client error.
func DecodeToken(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, apperr.Client("malformed pagination token")
	}
	if len(raw) < 8 {
		return nil, apperr.Client("malformed pagination token")
	}
	payload, sum := raw[:len(raw)-8], raw[len(raw)-8:]
	if xxhash.Sum64(payload) != binary.BigEndian.Uint64(sum) {
		return nil, apperr.Client("pagination token failed checksum")
	}
	var c Cursor
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, apperr.Client("malformed pagination token")
	}
	return &c, nil
}
