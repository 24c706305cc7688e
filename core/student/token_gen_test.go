package student

import (
	"testing"
	"time"

	"github.com/kahero/campushub/core"
)

func TestMakeVerifyToken(t *testing.T) {
	conf := &core.Config{
		SecretKey:                 "secret",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}

	now := time.Now()
	std := Student{
		ID:        "0c49c24d-1c06-4f2e-93b3-0c5a0d48c34e",
		USN:       "1ab20cs001",
		FirstName: "Tee",
		LastName:  "Cee",
		Email:     "t@test.test",
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	std.SetActive(true)
	_ = std.SetPassword("pwd")

	validToken, err := MakeToken(std, conf)
	if err != nil {
		t.Fatalf("MakeToken() error = %v", err)
	}

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := MakeToken(std, conf)
	if err != nil {
		t.Fatalf("MakeToken() error = %v", err)
	}
	NowFunc = time.Now // reset

	tests := []struct {
		name    string
		std     Student
		token   string
		wantErr error
	}{
		{name: "no token", std: std, wantErr: errInvalidToken},
		{name: "invalid parts len", std: std, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", std: std, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", std: std, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", std: std, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", std: std, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", std: std, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.std, tt.token, conf); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
