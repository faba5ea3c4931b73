package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
	"github.com/glucoguard/glucoguard/internal/datastore/repository"
)

// Resolution is the delivery target for an admitted candidate.
type Resolution struct {
	Locale string
	Token  string
}

// PreferenceResolver decides whether a patient receives notifications of a
// given category and with what locale and token. Lookups are cached with a
// short TTL since one scheduling cycle touches the same patient for several
// rules.
type PreferenceResolver struct {
	preferences repository.PreferenceRepository
	cache       *gocache.Cache
}

// NewPreferenceResolver creates a resolver caching preference rows for ttl.
func NewPreferenceResolver(preferences repository.PreferenceRepository, ttl time.Duration) *PreferenceResolver {
	return &PreferenceResolver{
		preferences: preferences,
		cache:       gocache.New(ttl, 2*ttl),
	}
}

// Resolve returns the delivery resolution for the user and category. A
// non-empty reason means the candidate is rejected: no preference record
// (RejectNoSettings), category switched off (RejectDisabled), or no delivery
// token registered (RejectNoToken). Rejection is a normal terminal outcome,
// not an error.
func (r *PreferenceResolver) Resolve(ctx context.Context, userID, category string) (*Resolution, string, error) {
	pref, err := r.lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPreferenceNotFound) {
			return nil, RejectNoSettings, nil
		}
		return nil, "", fmt.Errorf("failed to resolve preferences for user %s: %w", userID, err)
	}
	if !pref.CategoryEnabled(category) {
		return nil, RejectDisabled, nil
	}
	if pref.DeliveryToken == "" {
		return nil, RejectNoToken, nil
	}
	return &Resolution{Locale: pref.Locale, Token: pref.DeliveryToken}, "", nil
}

func (r *PreferenceResolver) lookup(ctx context.Context, userID string) (*entities.NotificationPreference, error) {
	if cached, ok := r.cache.Get(userID); ok {
		return cached.(*entities.NotificationPreference), nil
	}
	pref, err := r.preferences.GetPreference(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(userID, pref)
	return pref, nil
}
