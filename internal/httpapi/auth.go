package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"veterinaria/backend/internal/domain"
)

// AuthManager issues and verifies the HS256 bearer tokens the API runs
// on. Credentials live in the vet store; nothing is cached here, so a
// deactivated account is locked out on its next login.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	vets     VetStore
}

type VetStore interface {
	GetVetByEmail(ctx context.Context, email string) (*domain.Vet, error)
}

type clinicClaims struct {
	jwtlib.RegisteredClaims
	Role      string `json:"role"`
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, vets VetStore) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		vets:     vets,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	vet, err := a.vets.GetVetByEmail(ctx, email)
	if err != nil {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !verifyPassword(vet.Password, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !vet.Active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(vet, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        vet.Role,
		CompanyID:   vet.CompanyID,
		Name:        vet.Name,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &clinicClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{
		Email:     sub,
		Name:      claims.Name,
		Role:      claims.Role,
		CompanyID: claims.CompanyID,
	}, nil
}

func (a *AuthManager) sign(vet *domain.Vet, expiresAt time.Time) (string, error) {
	claims := clinicClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   vet.Email,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "veterinaria",
		},
		Role:      vet.Role,
		CompanyID: vet.CompanyID,
		Name:      vet.Name,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
