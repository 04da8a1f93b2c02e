package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

const testSecret = "test-secret"

func TestVerifier_Verify(t *testing.T) {
	valid, err := Issue(testSecret, model.Identity{UserID: "u1", Role: model.RoleTechnician}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	expired, err := Issue(testSecret, model.Identity{UserID: "u1", Role: model.RoleTechnician}, -time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	otherSecret, err := Issue("other", model.Identity{UserID: "u1", Role: model.RoleTechnician}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	badRole, err := Issue(testSecret, model.Identity{UserID: "u1", Role: "OWNER"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "CUSTOMER",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		want    model.Identity
		wantErr bool
	}{
		{name: "正常系", token: valid, want: model.Identity{UserID: "u1", Role: model.RoleTechnician}},
		{name: "期限切れ", token: expired, wantErr: true},
		{name: "署名鍵が違う", token: otherSecret, wantErr: true},
		{name: "不明なロール", token: badRole, wantErr: true},
		{name: "有効期限なし", token: noExpiry, wantErr: true},
		{name: "形式不正", token: "not-a-jwt", wantErr: true},
	}

	verifier := NewVerifier(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := verifier.Verify(context.Background(), tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type stalledVerifier struct{}

func (stalledVerifier) Verify(ctx context.Context, token string) (model.Identity, error) {
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	return model.Identity{UserID: "late"}, nil
}

func TestVerifyWithTimeout(t *testing.T) {
	token, err := Issue(testSecret, model.Identity{UserID: "u1", Role: model.RoleCustomer}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := VerifyWithTimeout(context.Background(), NewVerifier(testSecret), token, time.Second)
	if err != nil {
		t.Fatalf("VerifyWithTimeout() error = %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("VerifyWithTimeout() = %+v", got)
	}

	// 検証が止まっても制限時間で戻る
	if _, err := VerifyWithTimeout(context.Background(), stalledVerifier{}, token, 20*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("VerifyWithTimeout() error = %v, want DeadlineExceeded", err)
	}
}
