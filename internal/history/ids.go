package history

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/pkg/namesgenerator"
	"github.com/oklog/ulid/v2"
)

const maxNameAttempts = 100

// NewID returns a new time-ordered run identifier.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// UniqueName returns a random adjective_surname name that no entry in the
// store is using yet.
func UniqueName(ctx context.Context, store Store) (string, error) {
	for range maxNameAttempts {
		name := namesgenerator.GetRandomName(0)

		_, err := store.GetByName(ctx, name)
		if errors.Is(err, ErrNotFound) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("failed to generate unique name after %d attempts", maxNameAttempts)
}
