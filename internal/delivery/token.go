package delivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenTTL is how long a signed token stays valid.
const DefaultTokenTTL = 5 * time.Minute

// TokenSigner builds Shared Access Signature tokens for an Event Hub
// namespace.
type TokenSigner struct {
	resourceURI string
	key         []byte
	policyName  string
	ttl         time.Duration
	now         func() time.Time
}

// NewTokenSigner returns a signer for endpoint. primaryKey is the base64
// encoded shared access key.
func NewTokenSigner(endpoint, primaryKey, policyName string, ttl time.Duration) (*TokenSigner, error) {
	key, err := base64.StdEncoding.DecodeString(primaryKey)
	if err != nil {
		return nil, fmt.Errorf("decoding primary key: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenSigner{
		resourceURI: url.QueryEscape(strings.ToLower(endpoint)),
		key:         key,
		policyName:  policyName,
		ttl:         ttl,
		now:         time.Now,
	}, nil
}

// Token returns a token valid for the signer's TTL from now.
func (s *TokenSigner) Token() string {
	return s.TokenExpiring(s.now().Add(s.ttl).Unix())
}

// TokenExpiring returns the token for a fixed unix expiry.
func (s *TokenSigner) TokenExpiring(expiry int64) string {
	se := strconv.FormatInt(expiry, 10)

	return "SharedAccessSignature sr=" + s.resourceURI +
		"&sig=" + url.QueryEscape(s.sign(s.resourceURI+"\n"+se)) +
		"&se=" + se +
		"&skn=" + s.policyName
}

func (s *TokenSigner) sign(stringToSign string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(stringToSign))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
