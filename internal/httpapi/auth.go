package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"clinixpay/backend/internal/domain"
	"clinixpay/backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
)

// CustomerStore is the slice of the repository the auth manager needs.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
}

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	customers CustomerStore
}

type storeClaims struct {
	jwtlib.RegisteredClaims
	CustomerID string `json:"customer_id"`
	Role       string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, customers CustomerStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		customers: customers,
	}
}

// Register creates a store account. The password is bcrypt-hashed before it
// ever reaches the repository.
func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Customer, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.StoreName = strings.TrimSpace(req.StoreName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.LicenseKey = strings.TrimSpace(req.LicenseKey)

	if req.FullName == "" || req.StoreName == "" {
		return nil, fmt.Errorf("%w: fullName and storeName are required", store.ErrInvalid)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", store.ErrInvalid)
	}
	if req.LicenseKey == "" {
		return nil, fmt.Errorf("%w: licenseKey is required", store.ErrInvalid)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", store.ErrInvalid)
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return a.customers.CreateCustomer(ctx, domain.Customer{
		FullName:   req.FullName,
		StoreName:  req.StoreName,
		Location:   strings.TrimSpace(req.Location),
		ContactNo:  strings.TrimSpace(req.ContactNo),
		Email:      req.Email,
		GSTNo:      strings.TrimSpace(req.GSTNo),
		StoreLicNo: strings.TrimSpace(req.StoreLicNo),
		LicenseKey: req.LicenseKey,
		Password:   passwordHash,
		Role:       domain.RoleCustomer,
		Active:     true,
	})
}

// Login verifies credentials and issues a signed token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	customer, err := a.customers.GetCustomerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}

	if !verifyPassword(customer.Password, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !customer.Active {
		return domain.LoginResponse{}, ErrInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(customer, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Principal, error) {
	claims := &storeClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Principal{}, errors.New("invalid or expired token")
	}
	if claims.CustomerID == "" {
		return domain.Principal{}, errors.New("invalid token subject")
	}
	return domain.Principal{
		CustomerID: claims.CustomerID,
		Email:      claims.Subject,
		Role:       claims.Role,
	}, nil
}

func (a *AuthManager) sign(customer *domain.Customer, expiresAt time.Time) (string, error) {
	claims := storeClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   customer.Email,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "clinixpay",
		},
		CustomerID: customer.ID,
		Role:       customer.Role,
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
