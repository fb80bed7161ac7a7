package jwt_utils

import (
	"context"
	"crypto/rsa"
	"errors"
	"io/ioutil"
	"strings"
	"time"

	"github.com/FlowPlatform/flow-connector/internal/platform/logger"

	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
)

type clientInfo struct {
	ClientID           string `json:"client-id"`
	AuthorizationGroup string `json:"auth-group"`
}

type customClaims struct {
	*jwt.StandardClaims
	clientInfo
}

const (
	RsaTokenGenerator  = "jwt_rsa_generator"
	FileTokenGenerator = "jwt_file_reader"
)

// JwtGenerator returns a token to present to the MQTT broker.
type JwtGenerator func(c context.Context) (string, error)

func createRsaToken(client string, group string, exp time.Time, signKey *rsa.PrivateKey) (string, error) {
	t := jwt.New(jwt.GetSigningMethod("RS256"))
	t.Claims = &customClaims{
		&jwt.StandardClaims{
			ExpiresAt: exp.UTC().Unix(),
		},
		clientInfo{client, group},
	}
	t.Header["kid"] = "flow-connector"
	return t.SignedString(signKey)
}

func NewRSABasedJwtGenerator(privateKeyFile string, clientId string, tokenExpiryMinutes int) (JwtGenerator, error) {

	keyBytes, err := ioutil.ReadFile(privateKeyFile)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to read JWT private key file")
		return nil, err
	}

	signKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to parse JWT private key")
		return nil, err
	}

	return func(ctx context.Context) (string, error) {
		expiry := time.Now().Add(time.Duration(tokenExpiryMinutes) * time.Minute)
		return createRsaToken(clientId, "service", expiry, signKey)
	}, nil
}

func NewFileBasedJwtGenerator(jwtFile string) (JwtGenerator, error) {

	tokenBytes, err := ioutil.ReadFile(jwtFile)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Errorf("Unable to read JWT file (%s)", jwtFile)
		return nil, err
	}

	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return nil, errors.New("JWT file is empty")
	}

	return func(ctx context.Context) (string, error) {
		return token, nil
	}, nil
}
