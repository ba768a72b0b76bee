// Package session keeps lightweight client state (delivery address, freight
// choice) in signed cookies.
package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront-bff/internal/models"
)

const (
	AddressCookie = "delivery_address"
	FreightCookie = "freight"

	issuer = "storefront-bff"
)

type Store struct {
	secret []byte
	secure bool
	maxAge time.Duration
	now    func() time.Time
}

func NewStore(secret string, secure bool, maxAge time.Duration) *Store {
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	return &Store{
		secret: []byte(secret),
		secure: secure,
		maxAge: maxAge,
		now:    time.Now,
	}
}

type payloadClaims struct {
	Data json.RawMessage `json:"data"`
	jwt.RegisteredClaims
}

func (s *Store) SetAddress(w http.ResponseWriter, addr models.Address) error {
	return s.set(w, AddressCookie, addr)
}

// Address returns false when the cookie is missing or was tampered with.
func (s *Store) Address(r *http.Request) (models.Address, bool) {
	var addr models.Address
	ok := s.get(r, AddressCookie, &addr)
	return addr, ok
}

func (s *Store) ClearAddress(w http.ResponseWriter) {
	s.clear(w, AddressCookie)
}

func (s *Store) SetFreight(w http.ResponseWriter, f models.FreightSelection) error {
	return s.set(w, FreightCookie, f)
}

func (s *Store) Freight(r *http.Request) (models.FreightSelection, bool) {
	var f models.FreightSelection
	ok := s.get(r, FreightCookie, &f)
	return f, ok
}

func (s *Store) ClearFreight(w http.ResponseWriter) {
	s.clear(w, FreightCookie)
}

func (s *Store) set(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s cookie: %w", name, err)
	}

	now := s.now()
	claims := payloadClaims{
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("sign %s cookie: %w", name, err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.maxAge.Seconds()),
	})
	return nil
}

func (s *Store) get(r *http.Request, name string, out any) bool {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return false
	}

	var claims payloadClaims
	_, err = jwt.ParseWithClaims(c.Value, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(name),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return false
	}

	return json.Unmarshal(claims.Data, out) == nil
}

func (s *Store) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
