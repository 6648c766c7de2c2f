package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "taskservice/internal/errors"
	"taskservice/internal/logging"
	"taskservice/internal/model"
)

const cacheWriteTimeout = 2 * time.Second

// UserFinder is the credential store lookup used to resolve identities.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// IdentityResolver turns verified token claims into an identity, consulting
// the identity cache before the credential store. Cached entries are trusted
// until they expire; the store remains the source of truth.
type IdentityResolver struct {
	users UserFinder
	cache IdentityCacheInterface
	log   logging.Logger

	// wg tracks detached cache writes so tests can wait for them.
	wg sync.WaitGroup
}

// NewIdentityResolver creates a new identity resolver.
func NewIdentityResolver(users UserFinder, cache IdentityCacheInterface, log logging.Logger) *IdentityResolver {
	return &IdentityResolver{
		users: users,
		cache: cache,
		log:   log.With("component", "identity_resolver"),
	}
}

// Resolve returns the identity for claims or ErrUnauthenticated.
func (r *IdentityResolver) Resolve(ctx context.Context, claims *Claims) (*model.Identity, error) {
	if claims == nil || claims.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}

	cached, err := r.cache.Get(ctx, claims.UserID)
	if err != nil {
		r.log.Warn(ctx, "identity cache read failed", "user_id", claims.UserID, "error", err.Error())
	} else if cached != nil {
		return cached, nil
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apperrors.ErrUnauthenticated
	}

	user, err := r.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthenticated
		}
		r.log.Error(ctx, "identity lookup failed", "user_id", claims.UserID, "error", err.Error())
		return nil, apperrors.Internal("find user by id", err)
	}

	identity := user.Identity()
	r.repopulate(ctx, identity)
	return identity, nil
}

// repopulate writes the identity to the cache without holding up the
// request. The write outlives request cancellation but is bounded by
// cacheWriteTimeout.
func (r *IdentityResolver) repopulate(ctx context.Context, identity *model.Identity) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
		defer cancel()
		if err := r.cache.Set(ctx, identity); err != nil {
			r.log.Warn(ctx, "identity cache write failed", "user_id", identity.ID, "error", err.Error())
		}
	}()
}

// Wait blocks until pending cache writes finish. Used on shutdown.
func (r *IdentityResolver) Wait() {
	r.wg.Wait()
}
