package authn

import "github.com/smartsensor/gateway/internal/hub"

// Authenticator resolves a bearer token into a hub.Principal, satisfying
// hub.Authenticator so the subscriber hub's handshake can authorize
// requested filters against the token's allowed devices.
type Authenticator struct {
	secret string
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

func (a *Authenticator) Authenticate(token string) (hub.Principal, error) {
	claims, err := ParseToken(token, a.secret)
	if err != nil {
		return hub.Principal{}, hub.ErrUnauthorized
	}
	return hub.Principal{
		Subject:        claims.Subject,
		IsAdmin:        claims.IsAdmin,
		AllowedDevices: claims.AllowedDevices,
	}, nil
}
