package api

import (
	"encoding/base64"
	"fmt"
)

func buildIdentityHeader(account string, identityType string) string {
	identityJson := fmt.Sprintf(
		"{ \"identity\": {\"account_number\": \"%s\", \"org_id\": \"1979710\", \"type\": \"%s\", \"internal\": { \"org_id\": \"1979710\" } } }",
		account,
		identityType)
	return base64.StdEncoding.EncodeToString([]byte(identityJson))
}
