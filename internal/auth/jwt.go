package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

// ErrInvalidToken はトークンが検証できないことを表します
var ErrInvalidToken = errors.New("invalid token")

// Claims はアクセストークンのクレームです
// sub がユーザーID、role がロールです
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier はHS256で署名されたアクセストークンを検証します
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier は新しいVerifierを作成します
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify はトークンを検証して Identity を返します
func (v *Verifier) Verify(ctx context.Context, token string) (model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return model.Identity{}, err
	}

	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return model.Identity{}, ErrInvalidToken
	}

	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return model.Identity{UserID: claims.Subject, Role: role}, nil
}

// TokenVerifier はトークンからIdentityを解決します
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (model.Identity, error)
}

// VerifyWithTimeout は検証に時間制限をかけます
// 制限を超えた場合は検証の完了を待たずに context.DeadlineExceeded を返します
func VerifyWithTimeout(ctx context.Context, verifier TokenVerifier, token string, timeout time.Duration) (model.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		identity model.Identity
		err      error
	}
	done := make(chan result, 1)
	go func() {
		identity, err := verifier.Verify(ctx, token)
		done <- result{identity, err}
	}()

	select {
	case r := <-done:
		return r.identity, r.err
	case <-ctx.Done():
		return model.Identity{}, ctx.Err()
	}
}

// Issue はアクセストークンを発行します
// 発行は外部の認証基盤の役割で、ローカル開発とテストで使います
func Issue(secret string, identity model.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
