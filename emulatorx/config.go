package emulatorx

import (
	"fmt"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/clinia/emulator-console/errorx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ConnectionConfig holds the coordinates of a running emulator.
// A value is never mutated once handed out; a new target means a new value.
type ConnectionConfig struct {
	Host      string `json:"host" validate:"required"`
	Port      int    `json:"port" validate:"required,gt=0"`
	ProjectID string `json:"project_id" validate:"required"`
	TLS       bool   `json:"tls"`
}

// Validate only checks that every coordinate is present. A malformed host or port
// surfaces later as a transport failure.
func (c *ConnectionConfig) Validate() error {
	if c == nil {
		return errorx.FailedPreconditionErrorf("no emulator is configured")
	}
	if err := validate.Struct(c); err != nil {
		return errorx.InvalidArgumentErrorf("incomplete emulator configuration: %s", err.Error()).WithOriginal(err)
	}
	return nil
}

// Equal reports whether both configs point at the same emulator and project.
// Two nil configs are equal.
func (c *ConnectionConfig) Equal(o *ConnectionConfig) bool {
	if c == nil || o == nil {
		return c == o
	}
	return *c == *o
}

// Address returns host:port.
func (c *ConnectionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the root of the emulator REST API, over HTTPS when TLS is set.
func (c *ConnectionConfig) BaseURL() string {
	if c.TLS {
		return "https://" + c.Address()
	}
	return "http://" + c.Address()
}

func (c *ConnectionConfig) String() string {
	if c == nil {
		return "<unset>"
	}
	return fmt.Sprintf("%s (project %s)", c.Address(), c.ProjectID)
}

// Clone returns a copy that can be handed out without sharing memory.
func (c *ConnectionConfig) Clone() *ConnectionConfig {
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}
