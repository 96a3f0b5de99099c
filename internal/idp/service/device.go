package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/cache"
	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

type PollStatus int

const (
	PollPending PollStatus = iota
	PollSlowDown
	PollDenied
	PollGranted
	PollInvalid
)

func (s PollStatus) String() string {
	switch s {
	case PollPending:
		return "authorization_pending"
	case PollSlowDown:
		return "slow_down"
	case PollDenied:
		return "access_denied"
	case PollGranted:
		return "granted"
	default:
		return "invalid"
	}
}

// PollOutcome is the result of one device token poll. Grant is set for
// PollGranted and Err for PollInvalid.
type PollOutcome struct {
	Status PollStatus
	Grant  *domain.DeviceGrant
	Err    error
}

func invalidPoll(err error) PollOutcome { return PollOutcome{Status: PollInvalid, Err: err} }

// DeviceCodes keeps RFC 8628 device grants in the shared cache under the
// device code hash, with the user code as a secondary key.
type DeviceCodes struct {
	Cache   cache.Cache
	Clients *ClientRegistry
	Now     func() time.Time
}

func deviceKey(deviceCode string) string {
	return "device:" + cryptox.FingerprintToken(deviceCode)
}

func userCodeKey(userCode string) string {
	return "usercode:" + cryptox.NormalizeUserCode(userCode)
}

// Create stores a new pending grant under both keys for the payload's
// expires_in.
func (d *DeviceCodes) Create(ctx context.Context, clientID string, scopes []string, payload domain.DeviceAuthorization) error {
	now := clock(d.Now)
	ttl := time.Duration(payload.ExpiresIn) * time.Second

	grant := domain.DeviceGrant{
		ClientID:      clientID,
		Scopes:        scopes,
		Interval:      payload.Interval,
		ExpiresAt:     now.Add(ttl),
		Authorization: payload,
	}

	if err := cache.SetJSON(ctx, d.Cache, deviceKey(payload.DeviceCode), grant, ttl); err != nil {
		return err
	}
	return d.Cache.Set(ctx, userCodeKey(payload.UserCode), []byte(payload.DeviceCode), ttl)
}

// UserCodeTaken reports whether a user code is currently in use.
func (d *DeviceCodes) UserCodeTaken(ctx context.Context, userCode string) (bool, error) {
	_, err := d.Cache.Get(ctx, userCodeKey(userCode))
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	return err == nil, err
}

// ValidateUserCode resolves a code typed by the user. Every failure is
// ErrIncorrectCode so the page cannot be used to learn code state.
func (d *DeviceCodes) ValidateUserCode(ctx context.Context, userCode string) (string, *domain.Client, error) {
	norm := cryptox.NormalizeUserCode(userCode)
	if norm == "" {
		return "", nil, ErrIncorrectCode
	}

	raw, err := d.Cache.Get(ctx, userCodeKey(norm))
	if errors.Is(err, cache.ErrMiss) {
		return "", nil, ErrIncorrectCode
	}
	if err != nil {
		return "", nil, err
	}
	deviceCode := string(raw)

	var grant domain.DeviceGrant
	if _, err := cache.GetJSON(ctx, d.Cache, deviceKey(deviceCode), &grant); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return "", nil, ErrIncorrectCode
		}
		return "", nil, err
	}

	if grant.Decided() || cryptox.NormalizeUserCode(grant.Authorization.UserCode) != norm {
		return "", nil, ErrIncorrectCode
	}

	client, err := d.Clients.Lookup(ctx, grant.ClientID)
	if err != nil {
		return "", nil, err
	}
	if client == nil || !client.IsPublic() {
		return "", nil, ErrIncorrectCode
	}
	return deviceCode, client, nil
}

// confirmAttempts bounds how often ConfirmOrDeny re-reads a grant that was
// rewritten by a concurrent poll.
const confirmAttempts = 8

// ConfirmOrDeny records the user's decision. It returns false when the grant
// is gone, already decided, or expired. Polls only touch last_poll_at, so a
// swap lost to one is retried against the fresh value.
func (d *DeviceCodes) ConfirmOrDeny(ctx context.Context, user *domain.User, deviceCode string, confirm bool) (bool, error) {
	key := deviceKey(deviceCode)

	for range confirmAttempts {
		var grant domain.DeviceGrant
		raw, err := cache.GetJSON(ctx, d.Cache, key, &grant)
		if errors.Is(err, cache.ErrMiss) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if grant.Decided() {
			return false, nil
		}

		now := clock(d.Now)
		remaining := grant.ExpiresAt.Sub(now)
		if remaining <= 0 {
			return false, nil
		}

		grant.Granted = &confirm
		grant.UserID = user.ID
		grant.AuthTime = now

		ok, err := cache.SwapJSON(ctx, d.Cache, key, raw, grant, remaining)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		// The user code has done its job either way.
		_ = d.Cache.Delete(ctx, userCodeKey(grant.Authorization.UserCode))
		return true, nil
	}
	return false, ErrDeviceContention
}

// Poll runs one step of the device token state machine for clientID.
func (d *DeviceCodes) Poll(ctx context.Context, clientID, deviceCode string) PollOutcome {
	log := slogx.FromContext(ctx)

	client, err := d.Clients.Lookup(ctx, clientID)
	if err != nil {
		return invalidPoll(err)
	}
	if client == nil {
		return invalidPoll(ErrInvalidClient)
	}
	if !client.HasGrantType(domain.GrantTypeDeviceCode) {
		return invalidPoll(ErrUnsupportedGrantType)
	}
	if deviceCode == "" {
		return invalidPoll(ErrInvalidGrant)
	}

	key := deviceKey(deviceCode)
	var grant domain.DeviceGrant
	raw, err := cache.GetJSON(ctx, d.Cache, key, &grant)
	if errors.Is(err, cache.ErrMiss) {
		return invalidPoll(ErrInvalidGrant)
	}
	if err != nil {
		return invalidPoll(err)
	}
	if grant.ClientID != clientID {
		log.Info("device code presented by another client", slog.String("client_id", clientID))
		return invalidPoll(ErrInvalidGrant)
	}

	now := clock(d.Now)
	remaining := grant.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return invalidPoll(ErrInvalidGrant)
	}

	slowDown := grant.SlowDown(now)
	if slowDown || !grant.Decided() {
		// Every attempt moves the clock, so polling too fast keeps
		// answering slow_down. Losing this race to a concurrent poll
		// or decision is acceptable.
		grant.LastPollAt = &now
		if _, err := cache.SwapJSON(ctx, d.Cache, key, raw, grant, remaining); err != nil {
			return invalidPoll(err)
		}
		if slowDown {
			log.Debug("device poll too fast", slog.String("client_id", clientID))
			return PollOutcome{Status: PollSlowDown}
		}
		log.Debug("device authorization pending", slog.String("client_id", clientID))
		return PollOutcome{Status: PollPending}
	}

	// Decided: exactly one poll gets to consume the grant.
	var taken domain.DeviceGrant
	if err := cache.TakeJSON(ctx, d.Cache, key, &taken); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return invalidPoll(ErrInvalidGrant)
		}
		return invalidPoll(err)
	}
	if taken.Granted == nil {
		return invalidPoll(ErrInvalidGrant)
	}
	if !*taken.Granted {
		return PollOutcome{Status: PollDenied}
	}
	return PollOutcome{Status: PollGranted, Grant: &taken}
}
