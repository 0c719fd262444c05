package vpn

import (
	"fmt"
	"strings"

	"github.com/BojanKomazec/IpSec/common"
)

// Endpoint supplies the server address a dial goes to.
type Endpoint interface {
	IPAddress() string
}

// StaticEndpoint is an Endpoint with a fixed address.
type StaticEndpoint struct {
	addr string
}

// NewEndpoint returns an endpoint for addr, which may be a host name or
// an IP address.
func NewEndpoint(addr string) (StaticEndpoint, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return StaticEndpoint{}, fmt.Errorf("%w: empty server address", common.ErrInvalidArgument)
	}
	return StaticEndpoint{addr: addr}, nil
}

// IPAddress returns the endpoint address.
func (e StaticEndpoint) IPAddress() string { return e.addr }

// ConnectParams are the per-dial arguments.
type ConnectParams struct {
	EntryName string
	Username  string
	Password  string
}

// Validate reports the first empty field as common.ErrInvalidArgument.
func (p ConnectParams) Validate() error {
	switch {
	case p.EntryName == "":
		return fmt.Errorf("%w: empty connection name", common.ErrInvalidArgument)
	case p.Username == "":
		return fmt.Errorf("%w: empty username", common.ErrInvalidArgument)
	case p.Password == "":
		return fmt.Errorf("%w: empty password", common.ErrInvalidArgument)
	}
	return nil
}

// ParamsFromMap builds ConnectParams from the keyed form
// {"username", "password", "IpSecConnectionName"}.
func ParamsFromMap(m map[string]any) (ConnectParams, error) {
	get := func(key string) (string, error) {
		v, ok := m[key]
		if !ok {
			return "", fmt.Errorf("%w: missing %q", common.ErrInvalidArgument, key)
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", fmt.Errorf("%w: %q must be a non-empty string", common.ErrInvalidArgument, key)
		}
		return s, nil
	}

	var p ConnectParams
	var err error
	if p.Username, err = get(common.ParamUsername); err != nil {
		return ConnectParams{}, err
	}
	if p.Password, err = get(common.ParamPassword); err != nil {
		return ConnectParams{}, err
	}
	if p.EntryName, err = get(common.ParamConnectionName); err != nil {
		return ConnectParams{}, err
	}
	return p, nil
}

// String masks the password.
func (p ConnectParams) String() string {
	return fmt.Sprintf("entry=%s user=%s password=%s", p.EntryName, p.Username, common.MaskSecret(p.Password))
}
