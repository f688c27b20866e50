package services

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type TokenServiceTestSuite struct {
	suite.Suite
	tokenService TokenServiceInterface
	jwtConfig    *config.JWTConfig
	user         *models.User
}

func (s *TokenServiceTestSuite) SetupSuite() {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(s.T(), err)

	s.jwtConfig = &config.JWTConfig{
		AccessTokenDuration: time.Hour,
		PrivateKey:          privateKey,
		PublicKey:           &privateKey.PublicKey,
		Issuer:              "bankcore",
	}
	s.tokenService = NewTokenService(s.jwtConfig)

	s.user = &models.User{
		ID:       uuid.New(),
		Username: "john",
		Role:     models.RoleCustomer,
	}
}

func TestTokenServiceSuite(t *testing.T) {
	suite.Run(t, new(TokenServiceTestSuite))
}

func (s *TokenServiceTestSuite) TestGenerateAndValidateAccessToken() {
	token, expiresAt, err := s.tokenService.GenerateAccessToken(s.user)
	s.NoError(err)
	s.NotEmpty(token)
	s.WithinDuration(time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := s.tokenService.ValidateAccessToken(token)
	s.NoError(err)
	s.Equal(s.user.ID.String(), claims.UserID)
	s.Equal("john", claims.Username)
	s.Equal(models.RoleCustomer, claims.Role)
	s.Equal("bankcore", claims.Issuer)
}

func (s *TokenServiceTestSuite) TestGenerateAccessToken_NilUser() {
	_, _, err := s.tokenService.GenerateAccessToken(nil)
	s.Error(err)
}

func (s *TokenServiceTestSuite) TestValidateAccessToken_Empty() {
	_, err := s.tokenService.ValidateAccessToken("")
	s.ErrorIs(err, ErrEmptyToken)
}

func (s *TokenServiceTestSuite) TestValidateAccessToken_Garbage() {
	_, err := s.tokenService.ValidateAccessToken("not.a.jwt")
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *TokenServiceTestSuite) TestValidateAccessToken_Expired() {
	expiredConfig := *s.jwtConfig
	expiredConfig.AccessTokenDuration = -time.Minute
	expiredService := NewTokenService(&expiredConfig)

	token, _, err := expiredService.GenerateAccessToken(s.user)
	s.NoError(err)

	_, err = s.tokenService.ValidateAccessToken(token)
	s.ErrorIs(err, ErrExpiredToken)
}

func (s *TokenServiceTestSuite) TestValidateAccessToken_WrongIssuer() {
	otherConfig := *s.jwtConfig
	otherConfig.Issuer = "someone-else"
	otherService := NewTokenService(&otherConfig)

	token, _, err := otherService.GenerateAccessToken(s.user)
	s.NoError(err)

	_, err = s.tokenService.ValidateAccessToken(token)
	s.ErrorIs(err, ErrInvalidIssuer)
}

func (s *TokenServiceTestSuite) TestValidateAccessToken_WrongKey() {
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(s.T(), err)

	otherConfig := *s.jwtConfig
	otherConfig.PrivateKey = otherKey
	otherService := NewTokenService(&otherConfig)

	token, _, err := otherService.GenerateAccessToken(s.user)
	s.NoError(err)

	_, err = s.tokenService.ValidateAccessToken(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func TestExtractTokenFromHeader(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ts := NewTokenService(&config.JWTConfig{
		AccessTokenDuration: time.Hour,
		PrivateKey:          privateKey,
		PublicKey:           &privateKey.PublicKey,
		Issuer:              "bankcore",
	})

	token, err := ts.ExtractTokenFromHeader("Bearer abc.def.ghi")
	assert.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	// Case-insensitive scheme
	token, err = ts.ExtractTokenFromHeader("bearer abc.def.ghi")
	assert.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = ts.ExtractTokenFromHeader("")
	assert.ErrorIs(t, err, ErrInvalidAuthHeader)

	_, err = ts.ExtractTokenFromHeader("Basic abc")
	assert.ErrorIs(t, err, ErrInvalidAuthHeader)

	_, err = ts.ExtractTokenFromHeader("Bearer ")
	assert.ErrorIs(t, err, ErrInvalidAuthHeader)
}
