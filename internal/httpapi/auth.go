package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"salesdesk/backend/internal/apperr"
	"salesdesk/backend/internal/domain"
)

// StoreDirectory resolves a store with its password hash for login.
type StoreDirectory interface {
	StoreCredentials(ctx context.Context, storeID string) (domain.Store, error)
}

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	adminHash string
	stores    StoreDirectory
}

type tokenClaims struct {
	jwtlib.RegisteredClaims
	Role    string `json:"role"`
	StoreID string `json:"storeId"`
}

var errInvalidCredentials = apperr.New(apperr.CodeUnauthorized, "invalid credentials")

// NewAuthManager hashes adminPassword once at startup. An empty admin
// password disables the admin unlock.
func NewAuthManager(secret string, tokenTTL time.Duration, adminPassword string, stores StoreDirectory) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	manager := &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		stores:   stores,
	}
	if adminPassword = strings.TrimSpace(adminPassword); adminPassword != "" {
		if hashed, err := hashPassword(adminPassword); err == nil {
			manager.adminHash = hashed
		}
	}
	return manager
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	st, err := a.stores.StoreCredentials(ctx, req.StoreID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(st.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	return a.issue(st.ID, domain.RoleStore)
}

// UnlockAdmin upgrades an authenticated store session to the admin role for
// the same store.
func (a *AuthManager) UnlockAdmin(actor domain.Actor, password string) (domain.LoginResponse, error) {
	if a.adminHash == "" || !verifyPassword(a.adminHash, password) {
		return domain.LoginResponse{}, apperr.New(apperr.CodeUnauthorized, "invalid admin password")
	}
	return a.issue(actor.StoreID, domain.RoleAdmin)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &tokenClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, apperr.New(apperr.CodeUnauthorized, "invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.StoreID == "" {
		return domain.Actor{}, apperr.New(apperr.CodeUnauthorized, "invalid token subject")
	}
	return domain.Actor{Subject: sub, StoreID: claims.StoreID, Role: claims.Role}, nil
}

func (a *AuthManager) HashPassword(password string) (string, error) {
	return hashPassword(password)
}

func (a *AuthManager) issue(storeID, role string) (domain.LoginResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	claims := tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   storeID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "salesdesk",
		},
		Role:    role,
		StoreID: storeID,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, apperr.Wrap(apperr.CodeInternal, err, "sign token")
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        role,
		StoreID:     storeID,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
