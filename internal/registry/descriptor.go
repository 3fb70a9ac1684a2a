// Package registry stores the descriptors of functions that can be invoked
// through the broker.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Praises003/aether/internal/ledger"
)

var (
	// ErrNotFound is returned when no descriptor has the identifier.
	ErrNotFound = errors.New("function not found")

	// ErrInvalidDescriptor wraps descriptor validation failures.
	ErrInvalidDescriptor = errors.New("invalid function descriptor")
)

// ExecutionType selects where a function runs.
type ExecutionType string

const (
	ExecutionLocal  ExecutionType = "LOCAL"
	ExecutionRemote ExecutionType = "REMOTE"
)

// UnmarshalText accepts "API" as an alias of REMOTE.
func (t *ExecutionType) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "LOCAL":
		*t = ExecutionLocal
	case "REMOTE", "API":
		*t = ExecutionRemote
	case "":
		*t = ""
	default:
		return fmt.Errorf("%w: unknown execution type %q", ErrInvalidDescriptor, string(b))
	}
	return nil
}

// Target is the executable part of a descriptor: LocalTarget or RemoteTarget.
type Target interface {
	isTarget()
}

// LocalTarget runs an in-process handler registered under the identifier.
type LocalTarget struct{}

// RemoteTarget calls an HTTP endpoint.
type RemoteTarget struct {
	Endpoint string
	Method   string
}

func (LocalTarget) isTarget()  {}
func (RemoteTarget) isTarget() {}

// Descriptor describes a registered function.
type Descriptor struct {
	Identifier    string        `json:"functionIdentifier" yaml:"identifier"`
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description" yaml:"description"`
	ExecutionType ExecutionType `json:"executionType" yaml:"execution_type"`
	Endpoint      string        `json:"endpointUrl,omitempty" yaml:"endpoint"`
	HTTPMethod    string        `json:"method,omitempty" yaml:"method"`
	DocsURL       string        `json:"docsUrl,omitempty" yaml:"docs_url"`
	PriceHbar     json.Number   `json:"priceHbar" yaml:"price_hbar"`
	PayeeAccount  string        `json:"providerAccountId" yaml:"payee_account"`
	Active        bool          `json:"isActive" yaml:"active"`
	CreatedAt     time.Time     `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time     `json:"updatedAt" yaml:"-"`
}

// NewDescriptor returns a descriptor with the defaults applied before decoding.
func NewDescriptor() *Descriptor {
	return &Descriptor{
		ExecutionType: ExecutionRemote,
		HTTPMethod:    "POST",
		PriceHbar:     "0",
		Active:        true,
	}
}

// Target returns the executable variant for the descriptor.
func (d *Descriptor) Target() Target {
	switch d.ExecutionType {
	case ExecutionLocal:
		return LocalTarget{}
	case ExecutionRemote:
		return RemoteTarget{Endpoint: d.Endpoint, Method: d.HTTPMethod}
	}
	return nil
}

// PriceTinybar returns the price in tinybar.
func (d *Descriptor) PriceTinybar() (int64, error) {
	return ledger.HbarToTinybar(d.PriceHbar.String())
}

// NormalizeID trims and upper-cases a function identifier.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

var textPolicy = bluemonday.StrictPolicy()

// Prepare normalizes, sanitizes and validates d in place. It is applied by
// every Store before writing.
func Prepare(d *Descriptor) error {
	d.Identifier = NormalizeID(d.Identifier)
	d.Name = strings.TrimSpace(textPolicy.Sanitize(d.Name))
	d.Description = strings.TrimSpace(textPolicy.Sanitize(d.Description))
	d.Endpoint = strings.TrimSpace(d.Endpoint)
	d.PayeeAccount = strings.TrimSpace(d.PayeeAccount)
	d.HTTPMethod = strings.ToUpper(strings.TrimSpace(d.HTTPMethod))

	if d.ExecutionType == "" {
		d.ExecutionType = ExecutionRemote
	}
	if d.HTTPMethod == "" {
		d.HTTPMethod = "POST"
	}
	if d.PriceHbar == "" {
		d.PriceHbar = "0"
	}

	return Validate(d)
}

// Validate checks a normalized descriptor.
func Validate(d *Descriptor) error {
	if d.Identifier == "" {
		return invalid("functionIdentifier", "is required")
	}

	switch d.ExecutionType {
	case ExecutionLocal:
	case ExecutionRemote:
		if d.Endpoint == "" {
			return invalid("endpointUrl", "is required for REMOTE functions")
		}
		u, err := url.Parse(d.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("endpointUrl", "must be an absolute http(s) URL")
		}
	default:
		return invalid("executionType", "must be LOCAL or REMOTE")
	}

	if d.HTTPMethod != "GET" && d.HTTPMethod != "POST" {
		return invalid("method", "must be GET or POST")
	}

	if _, err := d.PriceTinybar(); err != nil {
		return invalid("priceHbar", "must be a non-negative number")
	}

	if d.PayeeAccount == "" {
		return invalid("providerAccountId", "is required")
	}

	return nil
}

func invalid(field, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidDescriptor, field, msg)
}
