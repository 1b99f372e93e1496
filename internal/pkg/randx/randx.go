/*
Package randx provides functions for generating random identifiers and values.

It is used to assign chat message ids (ULIDs) and default user avatar colors.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/oklog/ulid/v2"
)

const (
	// maxPrimaryChannel caps each RGB channel of a generated primary color so that
	// white text on it stays readable.
	maxPrimaryChannel = 120

	// SecondaryColor is the foreground color paired with every generated primary color.
	SecondaryColor = "#ffffff"
)

// ChatID returns a new lexically sortable chat message id.
func ChatID() string {
	return ulid.Make().String()
}

// Colors returns a random dark primary color and its secondary color as "#rrggbb" strings.
func Colors() (string, string, error) {
	var rgb [3]int64
	for i := range rgb {
		n, err := rand.Int(rand.Reader, big.NewInt(maxPrimaryChannel))
		if err != nil {
			return "", "", fmt.Errorf("failed to generate random color channel: %v", err)
		}
		rgb[i] = n.Int64()
	}

	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]), SecondaryColor, nil
}
