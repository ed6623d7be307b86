// Package idgen generates short random identifiers for crawl runs and
// JSONP callback names.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// RunPrefix marks crawl-run IDs.
	RunPrefix = "cr-"
	// CallbackPrefix marks JSONP callback names. Underscore keeps the
	// result a valid JavaScript identifier.
	CallbackPrefix = "jsonp_"
)

// Alphabet has no symbols, so IDs are safe in URLs, SQL keys and
// JavaScript identifiers alike.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters after the prefix.
const Length = 10

// RunID returns a new crawl-run ID such as "cr-4fQ9xk2LmA".
func RunID() (string, error) {
	return WithPrefix(RunPrefix)
}

// CallbackName returns a fresh JSONP callback identifier.
func CallbackName() (string, error) {
	return WithPrefix(CallbackPrefix)
}

// WithPrefix returns prefix followed by Length random characters.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
