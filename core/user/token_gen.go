package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

const resetTokenSalt = "campus.core.user.ResetTokens"

// ResetTokens issues and checks password reset tokens.
//
// A token reads "<day>-<mac>": day is the issue day (days since the Unix epoch, base 36) and mac
// an HMAC-SHA256 of the account state on that day. Changing the password or e-mail, logging in
// or being deactivated invalidates every token issued before.
type ResetTokens struct {
	key     [sha256.Size]byte
	maxDays int
	now     func() time.Time
}

// NewResetTokens returns tokens signed with secret and valid for timeout, rounded down to whole days.
func NewResetTokens(secret string, timeout time.Duration) ResetTokens {
	return ResetTokens{
		key:     sha256.Sum256([]byte(resetTokenSalt + secret)),
		maxDays: int(timeout / (24 * time.Hour)),
		now:     time.Now,
	}
}

// At returns a copy of rt whose clock is stopped at t.
func (rt ResetTokens) At(t time.Time) ResetTokens {
	rt.now = func() time.Time { return t }
	return rt
}

// Make returns a token for usr, issued today.
func (rt ResetTokens) Make(usr User) string {
	day := dayNumber(rt.now())
	return strconv.FormatInt(day, 36) + "-" + rt.mac(usr, day)
}

// Check verifies that token was issued for usr in its current state and has not expired.
func (rt ResetTokens) Check(usr User, token string) error {
	dayStr, mac, ok := strings.Cut(token, "-")
	if !ok || dayStr == "" || mac == "" {
		return errInvalidToken
	}
	day, err := strconv.ParseInt(dayStr, 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(mac), []byte(rt.mac(usr, day))) {
		return errInvalidToken
	}

	today := dayNumber(rt.now())
	if day > today {
		return errInvalidToken
	}
	if today-day > int64(rt.maxDays) {
		return errTokenExpired
	}
	return nil
}

func (rt ResetTokens) mac(usr User, day int64) string {
	h := hmac.New(sha256.New, rt.key[:])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(day))
	h.Write(buf[:])
	h.Write([]byte(usr.ID))
	h.Write(usr.PasswordHash)
	h.Write([]byte(strings.ToLower(usr.Email)))
	if usr.Active() {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	if !usr.LastLogin.IsZero() {
		binary.BigEndian.PutUint64(buf[:], uint64(usr.LastLogin.UTC().Unix()))
		h.Write(buf[:])
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func dayNumber(t time.Time) int64 {
	return t.UTC().Unix() / int64(24*time.Hour/time.Second)
}

// EncodeUID base64 encodes the ID of usr for password reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}
