package auth

import (
	"context"
	"errors"
	"time"

	"backend-fleettrack/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const accessTokenTTL = 12 * time.Hour

type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
	}
}

// Register stores a device with its bcrypt-hashed secret and issues its
// first access token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Device, TokenResponse, error) {
	if req.Name == "" || req.Secret == "" {
		return Device{}, TokenResponse{}, errors.New("name and secret required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Secret), bcrypt.DefaultCost)
	if err != nil {
		return Device{}, TokenResponse{}, err
	}

	device := Device{
		ID:         uuid.NewString(),
		Name:       req.Name,
		VehicleID:  req.VehicleID,
		SecretHash: string(hash),
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO devices (id, name, vehicle_id, secret_hash)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, device.ID, device.Name, device.VehicleID, device.SecretHash)
	if err := row.Scan(&device.CreatedAt); err != nil {
		return Device{}, TokenResponse{}, err
	}

	tokens, err := s.IssueToken(device.ID)
	if err != nil {
		return Device{}, TokenResponse{}, err
	}
	return device, tokens, nil
}

// Authenticate checks the device secret and issues a fresh token.
func (s *Service) Authenticate(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT secret_hash FROM devices WHERE id = $1
	`, req.DeviceID)

	var hash string
	if err := row.Scan(&hash); err != nil {
		return TokenResponse{}, errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Secret)); err != nil {
		return TokenResponse{}, errors.New("invalid credentials")
	}
	return s.IssueToken(req.DeviceID)
}

func (s *Service) IssueToken(deviceID string) (TokenResponse, error) {
	claims := Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", errors.New("token invalid")
	}
	return claims.DeviceID, nil
}
