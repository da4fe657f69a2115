package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var errUnauthorized = errors.New("unauthorized")

// Claims are issued by the external identity provider.
type Claims struct {
	UserId      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

type user struct {
	Id          string `json:"user_id" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"required,max=32"`
}

func (c controller) getToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}

	return ""
}

func (c controller) parseJWT(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return &claims, nil
}

// getUser resolves the caller identity. Without a secret the identity is
// trusted from the user-id and display-name query params.
func (c controller) getUser(r *http.Request) (user, error) {
	if len(c.secret) == 0 {
		return user{
			Id:          r.URL.Query().Get("user-id"),
			DisplayName: r.URL.Query().Get("display-name"),
		}, nil
	}

	tokenString := c.getToken(r)
	if tokenString == "" {
		return user{}, fmt.Errorf("token was not provided: %w", errUnauthorized)
	}

	claims, err := c.parseJWT(tokenString)
	if err != nil {
		return user{}, fmt.Errorf("%w: %w", errUnauthorized, err)
	}

	return user{
		Id:          claims.UserId,
		DisplayName: claims.DisplayName,
	}, nil
}
