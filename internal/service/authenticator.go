package service

import (
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/manager"
	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
	"github.com/GoPolymarket/arena/internal/signer"
)

// SignedRequest is what the transport hands over for authentication.
type SignedRequest struct {
	Method    string
	Path      string
	Body      []byte
	Identity  string
	Timestamp string
	Signature string
}

// Authenticator resolves the caller identity of a request. With signatures required it checks the
// timestamp window, the signature and replay; otherwise the identity header is trusted.
type Authenticator struct {
	requireSignature bool
	maxSkew          time.Duration
	replay           *manager.ReplayGuard
	now              func() time.Time
}

func NewAuthenticator(requireSignature bool, maxSkew time.Duration) *Authenticator {
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	return &Authenticator{
		requireSignature: requireSignature,
		maxSkew:          maxSkew,
		replay:           manager.NewReplayGuard(2 * maxSkew),
		now:              time.Now,
	}
}

func (a *Authenticator) RequireSignature() bool {
	return a.requireSignature
}

func (a *Authenticator) Authenticate(req SignedRequest) (address.Address, error) {
	if req.Identity == "" {
		return address.Zero, authFailed("missing identity header", nil)
	}
	identity, err := address.Parse(req.Identity)
	if err != nil {
		return address.Zero, authFailed("invalid identity", err)
	}
	if !a.requireSignature {
		return identity, nil
	}

	if req.Timestamp == "" || req.Signature == "" {
		return address.Zero, authFailed("missing signature headers", nil)
	}
	ts, err := signer.ParseTimestamp(req.Timestamp)
	if err != nil {
		return address.Zero, authFailed("invalid timestamp", err)
	}
	now := a.now()
	if skew := now.Sub(ts); skew > a.maxSkew || skew < -a.maxSkew {
		return address.Zero, authFailed("timestamp outside the accepted window", nil)
	}

	msg := signer.CanonicalMessage(req.Method, req.Path, req.Timestamp, req.Body)
	if err := signer.Verify(identity, msg, req.Signature); err != nil {
		return address.Zero, authFailed("signature verification failed", err)
	}
	if !a.replay.Check(identity, req.Signature, ts, now) {
		return address.Zero, authFailed("request already seen", nil)
	}
	return identity, nil
}

// Sweep prunes replay state; called periodically.
func (a *Authenticator) Sweep() {
	a.replay.Prune(a.now())
}

func authFailed(msg string, cause error) error {
	return apperrors.New(apperrors.ErrAuthFailed, msg, cause)
}
