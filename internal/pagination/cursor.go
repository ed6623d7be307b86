// Package pagination implements keyset pagination over stored events.
package pagination

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// ErrInvalidCursor is wrapped by every DecodeCursor failure.
var ErrInvalidCursor = errors.New("invalid next token")

// EncodeCursor renders k as "<epoch-millis>_<id>".
func EncodeCursor(k model.EventKey) string {
	return strconv.FormatInt(k.StartDate.UnixMilli(), 10) + "_" + strconv.FormatInt(k.ID, 10)
}

// DecodeCursor parses a cursor produced by EncodeCursor.
func DecodeCursor(s string) (model.EventKey, error) {
	millisPart, idPart, ok := strings.Cut(s, "_")
	if !ok {
		return model.EventKey{}, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}
	millis, err := strconv.ParseInt(millisPart, 10, 64)
	if err != nil {
		return model.EventKey{}, fmt.Errorf("%w: bad timestamp %q", ErrInvalidCursor, millisPart)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return model.EventKey{}, fmt.Errorf("%w: bad id %q", ErrInvalidCursor, idPart)
	}
	return model.EventKey{StartDate: time.UnixMilli(millis).UTC(), ID: id}, nil
}
