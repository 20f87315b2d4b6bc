package driven

import (
	"context"
	"errors"

	"github.com/avelloz/streampanel/internal/domain/model"
)

// ErrNotAuthenticated is returned by operations that require a stored
// credential when none exists for the platform.
var ErrNotAuthenticated = errors.New("no stored credential: connect the account first")

// CredentialStore defines the driven port for credential persistence.
// At most one credential row exists per platform key; Upsert is the only
// write path for the token blob and advances the row's UpdatedAt, which the
// token lifecycle uses as the issuance reference for expiry computation.
type CredentialStore interface {
	// FindOne retrieves the credential for the given platform.
	// Returns (nil, nil) when no credential exists; not-yet-connected is an
	// expected steady state, not an error.
	FindOne(ctx context.Context, platform string) (*model.Credential, error)

	// Upsert inserts or fully replaces the token blob for the platform and
	// advances UpdatedAt to the write time. The blob is stored opaquely.
	Upsert(ctx context.Context, platform, tokenBlob string) error

	// UpdateProfile updates only the cached display fields. It must leave
	// UpdatedAt untouched so profile syncs do not skew expiry math.
	// Returns ErrNotAuthenticated when no row exists for the platform.
	UpdateProfile(ctx context.Context, platform, displayName, profileImage string) error

	// Delete removes the credential for the given platform. Deleting a
	// missing credential is not an error.
	Delete(ctx context.Context, platform string) error

	// DeleteAll wipes every stored credential.
	DeleteAll(ctx context.Context) error
}
