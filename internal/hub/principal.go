package hub

import "github.com/smartsensor/gateway/internal/model"

// Principal is the resolved identity behind a WebSocket handshake's auth
// token, as produced by internal/authn.
type Principal struct {
	Subject        string
	IsAdmin        bool
	AllowedDevices []string // device IDs this principal may subscribe to; ignored if IsAdmin
}

// Authenticator validates a bearer token and resolves it to a Principal.
// Satisfied by internal/authn.
type Authenticator interface {
	Authenticate(token string) (Principal, error)
}

// authorizeFilter narrows or rejects a requested Filter against the
// principal's scope. Admin principals may request any filter unchanged.
// Non-admin principals requesting "*" are scoped down to exactly their
// allowed devices; a non-admin requesting a specific device outside
// their scope is rejected outright.
func authorizeFilter(p Principal, f model.Filter) (model.Filter, error) {
	if p.IsAdmin {
		return f, nil
	}

	allowed := make(map[string]struct{}, len(p.AllowedDevices))
	for _, id := range p.AllowedDevices {
		allowed[id] = struct{}{}
	}

	var devices []string
	for _, want := range f.Devices {
		if want == "*" {
			devices = append(devices, p.AllowedDevices...)
			continue
		}
		if _, ok := allowed[want]; !ok {
			return model.Filter{}, ErrForbiddenScope
		}
		devices = append(devices, want)
	}
	if len(devices) == 0 {
		devices = append(devices, p.AllowedDevices...)
	}

	return model.Filter{Devices: devices, Kinds: f.Kinds}, nil
}
