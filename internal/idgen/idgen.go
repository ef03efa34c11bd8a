// Package idgen generates the client ids that attribute submitted workflows
// to an editor session.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ClientPrefix marks ids generated for editor sessions.
const ClientPrefix = "ng-"

// alphabet is lower-case alphanumerics so ids survive case-insensitive
// engine logs.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// clientIDLength is the number of random characters after the prefix.
const clientIDLength = 16

// ClientID returns a new session client id.
func ClientID() (string, error) {
	return withPrefix(ClientPrefix, clientIDLength)
}

// Token returns a random token of n characters, used for generated
// configuration secrets.
func Token(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("idgen: token length must be positive, got %d", n)
	}
	return withPrefix("", n)
}

func withPrefix(prefix string, n int) (string, error) {
	id, err := nanoid.Generate(alphabet, n)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
