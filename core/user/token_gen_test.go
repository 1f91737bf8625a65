package user

import (
	"testing"
	"time"
)

func TestResetTokens(t *testing.T) {
	timeout := 3 * 24 * time.Hour
	tokens := NewResetTokens("secret", timeout)

	now := time.Now()
	usr := User{
		ID:        "0e1d0d48-a4cb-4c0c-9a8a-0d8a8a6b4d31",
		Name:      "T",
		Username:  "t",
		Email:     "t@spist.edu",
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	usr.SetActive(true)
	_ = usr.SetPassword("pwd")

	validToken := tokens.Make(usr)
	lastDayToken := tokens.At(now.Add(-timeout)).Make(usr)
	expiredToken := tokens.At(now.Add(-timeout - 24*time.Hour)).Make(usr)
	futureToken := tokens.At(now.Add(48 * time.Hour)).Make(usr)
	otherSecretToken := NewResetTokens("other", timeout).Make(usr)

	pwdChanged := usr
	_ = pwdChanged.SetPassword("new-pwd")
	emailChanged := usr
	emailChanged.Email = "hero@spist.edu"
	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Minute)
	deactivated := usr
	deactivated.SetActive(false)

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "no separator", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "no mac", usr: usr, token: "k2x-", wantErr: errInvalidToken},
		{name: "invalid day", usr: usr, token: "%%-sig", wantErr: errInvalidToken},
		{name: "forged mac", usr: usr, token: "k2x-sigsig", wantErr: errInvalidToken},
		{name: "other secret", usr: usr, token: otherSecretToken, wantErr: errInvalidToken},
		{name: "issued in the future", usr: usr, token: futureToken, wantErr: errInvalidToken},
		{name: "expired", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "password changed", usr: pwdChanged, token: validToken, wantErr: errInvalidToken},
		{name: "email changed", usr: emailChanged, token: validToken, wantErr: errInvalidToken},
		{name: "logged in since", usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "deactivated", usr: deactivated, token: validToken, wantErr: errInvalidToken},
		{name: "last valid day", usr: usr, token: lastDayToken},
		{name: "valid", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tokens.Check(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "0e1d0d48-a4cb-4c0c-9a8a-0d8a8a6b4d31"}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID() error = %v", err)
	}
	if id != usr.ID {
		t.Errorf("decodeUID() = %v, want %v", id, usr.ID)
	}
	if _, err = decodeUID("%%%"); err == nil {
		t.Error("decodeUID() expected an error")
	}
}
