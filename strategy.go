package gatekeep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/gatekeep/jwt"
	"github.com/MrEthical07/gatekeep/session"
)

// LoginRequest carries the identity a login endpoint has already verified.
type LoginRequest struct {
	SubjectID string
	Role      Role
	// AutoLogin selects the long opaque-session lifetime. Signed tokens ignore it;
	// their lifetime is a deployment setting.
	AutoLogin bool
}

// Issued is the result of a successful [Engine.Login].
type Issued struct {
	Token     string
	Identity  *Identity
	ExpiresIn time.Duration
}

// strategy is one token generation: opaque sessions or signed tokens.
type strategy interface {
	issue(ctx context.Context, req LoginRequest) (*Issued, error)
	authenticate(ctx context.Context, token string) (*Identity, error)
	renew(ctx context.Context, id *Identity) error
	revoke(ctx context.Context, token string) error
}

type opaqueStrategy struct {
	sessions *session.Service
}

func (s *opaqueStrategy) issue(ctx context.Context, req LoginRequest) (*Issued, error) {
	sess, err := s.sessions.Issue(ctx, session.Claims{
		SubjectID: req.SubjectID,
		Role:      string(req.Role),
		AutoLogin: req.AutoLogin,
	})
	if err != nil {
		return nil, mapSessionError(err)
	}
	return &Issued{
		Token:     sess.Token,
		Identity:  identityFromSession(sess),
		ExpiresIn: s.sessions.TTLFor(sess.AutoLogin),
	}, nil
}

func (s *opaqueStrategy) authenticate(ctx context.Context, token string) (*Identity, error) {
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, mapSessionError(err)
	}
	role, err := ParseRole(sess.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	id := identityFromSession(sess)
	id.Role = role
	return id, nil
}

func (s *opaqueStrategy) renew(ctx context.Context, id *Identity) error {
	if err := s.sessions.Renew(ctx, id.token, s.sessions.TTLFor(id.AutoLogin)); err != nil {
		return mapSessionError(err)
	}
	return nil
}

func (s *opaqueStrategy) revoke(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return mapSessionError(err)
	}
	return nil
}

func identityFromSession(sess *session.Session) *Identity {
	return &Identity{
		SubjectID: sess.SubjectID,
		Role:      Role(sess.Role),
		AutoLogin: sess.AutoLogin,
		IssuedAt:  sess.IssuedTime(),
		token:     sess.Token,
	}
}

func mapSessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrMalformedToken):
		return ErrMalformedToken
	case errors.Is(err, session.ErrTokenNotFound):
		return ErrTokenNotFound
	default:
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
}

type signedStrategy struct {
	codec    *jwt.Codec
	denyList jwt.DenyList
	timeout  time.Duration
}

func (s *signedStrategy) issue(_ context.Context, req LoginRequest) (*Issued, error) {
	token, claims, err := s.codec.Sign(req.SubjectID, string(req.Role))
	if err != nil {
		return nil, err
	}
	return &Issued{
		Token:     token,
		Identity:  identityFromClaims(claims, token),
		ExpiresIn: s.codec.Lifetime(),
	}, nil
}

func (s *signedStrategy) authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, mapCodecError(err)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if s.denyList != nil {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		denied, err := s.denyList.Denied(ctx, claims.TokenID())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if denied {
			return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
		}
	}

	id := identityFromClaims(claims, token)
	id.Role = role
	return id, nil
}

// Signed tokens carry their own expiry; there is nothing to slide.
func (s *signedStrategy) renew(context.Context, *Identity) error {
	return nil
}

// revoke adds the token's jti to the deny-list. Without one, logout is client-side
// only and the token stays valid until exp.
func (s *signedStrategy) revoke(ctx context.Context, token string) error {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return mapCodecError(err)
	}
	if s.denyList == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.denyList.Deny(ctx, claims.TokenID(), claims.ExpiresTime()); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func identityFromClaims(claims *jwt.Claims, token string) *Identity {
	id := &Identity{
		SubjectID: claims.SubjectID(),
		Role:      Role(claims.Role),
		ExpiresAt: claims.ExpiresTime(),
		token:     token,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	return id
}

func mapCodecError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}
