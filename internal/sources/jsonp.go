package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alfredjeanlab/osevents/internal/idgen"
)

// jsonpCall fetches a JSONP endpoint and decodes the wrapped payload into v.
// It adds a cache-busting "_" parameter and a freshly generated "callback"
// name to rawURL's query.
func jsonpCall(ctx context.Context, client *http.Client, source, rawURL string, now time.Time, v any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse jsonp url: %w", err)
	}
	callback, err := idgen.CallbackName()
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(now.UnixMilli(), 10))
	q.Set("callback", callback)
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build jsonp request: %w", err)
	}
	req.Header.Set("Accept", "application/javascript, application/json;q=0.9, */*;q=0.1")

	body, err := fetch(ctx, client, source, req)
	if err != nil {
		return err
	}
	payload, err := unwrapJSONP(body)
	if err != nil {
		return &ParseError{Source: source, Err: err}
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &ParseError{Source: source, Err: fmt.Errorf("decode jsonp payload: %w", err)}
	}
	return nil
}

var errNotJSONP = errors.New("response is neither JSONP nor JSON")

// unwrapJSONP returns the JSON argument of a script of the form
// `name(payload);`. Servers sometimes ignore the requested callback and
// use their own identifier, or send bare JSON. Both are accepted.
func unwrapJSONP(body []byte) ([]byte, error) {
	b := bytes.TrimSpace(body)
	b = bytes.TrimPrefix(b, []byte("/**/"))
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errNotJSONP
	}
	if b[0] == '{' || b[0] == '[' {
		return b, nil
	}

	name := b[:identLen(b)]
	if len(name) == 0 {
		return nil, errNotJSONP
	}
	rest := bytes.TrimSpace(b[len(name):])
	if len(rest) == 0 || rest[0] != '(' {
		return nil, fmt.Errorf("%w: no call after %q", errNotJSONP, name)
	}
	rest = bytes.TrimSuffix(rest, []byte(";"))
	rest = bytes.TrimSpace(rest)
	if rest[len(rest)-1] != ')' {
		return nil, fmt.Errorf("%w: unterminated call to %q", errNotJSONP, name)
	}
	payload := bytes.TrimSpace(rest[1 : len(rest)-1])
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty call to %q", errNotJSONP, name)
	}
	return payload, nil
}

// identLen returns the length of the dotted JavaScript identifier at the
// start of b.
func identLen(b []byte) int {
	for i, c := range b {
		switch {
		case c == '_' || c == '$':
		case c == '.' && i > 0:
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return i
		}
	}
	return len(b)
}
