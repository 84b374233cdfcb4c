package accesscode

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sharetube/watchparty/internal/repository/store"
)

// ConnectClaims bind a websocket connection to the room of one access code.
type ConnectClaims struct {
	SessionCode string `json:"session_code"`
	MovieId     int    `json:"movie_id"`
	jwt.RegisteredClaims
}

// The token never outlives the code it was issued for.
func (s service) issueConnectToken(accessCode store.AccessCode) (string, error) {
	now := s.now()
	expiresAt := now.Add(s.connectTokenTTL)
	if accessCode.ExpiresAt.Before(expiresAt) {
		expiresAt = accessCode.ExpiresAt
	}

	claims := ConnectClaims{
		SessionCode: accessCode.Code,
		MovieId:     accessCode.MovieId,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accessCode.UserId,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign connect token: %w", err)
	}

	return token, nil
}

func (s service) ParseConnectToken(tokenString string) (*ConnectClaims, error) {
	claims := ConnectClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConnectToken, err)
	}

	if !token.Valid || claims.SessionCode == "" {
		return nil, ErrInvalidConnectToken
	}

	return &claims, nil
}
