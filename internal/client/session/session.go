// Package session persists the signed-in user and access token between
// client runs.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionKey  = "bugtracker.session"
	ReturnToKey = "bugtracker.returnTo"
)

// User is the client-side copy of the signed-in account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Store reads and writes the session record on top of a Storage.
type Store struct {
	storage Storage
	now     func() time.Time
}

func NewStore(storage Storage) *Store {
	return &Store{storage: storage, now: time.Now}
}

// Load returns the stored session, or nil when none is stored. A record that
// cannot be decoded is discarded.
func (s *Store) Load() (*Session, error) {
	raw, ok, err := s.storage.Get(SessionKey)
	if err != nil || !ok {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.Token == "" {
		_ = s.storage.Delete(SessionKey)
		return nil, nil
	}
	return &sess, nil
}

// Current returns the stored session if its token has not expired.
func (s *Store) Current() (*Session, error) {
	sess, err := s.Load()
	if err != nil || sess == nil {
		return nil, err
	}
	if TokenExpired(sess.Token, s.now()) {
		return nil, nil
	}
	return sess, nil
}

func (s *Store) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return s.storage.Set(SessionKey, string(data))
}

func (s *Store) Clear() error {
	return s.storage.Delete(SessionKey)
}

// SetReturnTo records the location to resume after the next login.
func (s *Store) SetReturnTo(path string) error {
	return s.storage.Set(ReturnToKey, path)
}

// TakeReturnTo returns and forgets the recorded location.
func (s *Store) TakeReturnTo() (string, error) {
	path, ok, err := s.storage.Get(ReturnToKey)
	if err != nil || !ok {
		return "", err
	}
	return path, s.storage.Delete(ReturnToKey)
}

// TokenExpired inspects the exp claim without verifying the signature. A
// token that cannot be decoded counts as expired; one without exp does not.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
