package dataclient

import (
	"bytes"
	"time"
)

// Status reflects the most recent data operation, shared across endpoints.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a read-only copy of the cache.
type Snapshot struct {
	Status      Status    `json:"status" yaml:"status"`
	PrimaryData *Payload  `json:"primaryData,omitempty" yaml:"-"`
	UserData    *Payload  `json:"userData,omitempty" yaml:"-"`
	LastFetched time.Time `json:"lastFetched,omitempty" yaml:"lastFetched,omitempty"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	// Owner is the account the cached payloads belong to.
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`
}

// cache is guarded by Client.mu.
type cache struct {
	status      Status
	primaryData []byte
	userData    []byte
	lastFetched time.Time
	err         string
	owner       string
}

func (c *cache) reset() {
	*c = cache{}
}

// claim makes owner the cache's account, dropping data cached for anyone else.
func (c *cache) claim(owner string) {
	if c.owner != owner {
		c.reset()
		c.owner = owner
	}
}

func (c *cache) snapshot() Snapshot {
	s := Snapshot{
		Status:      c.status,
		LastFetched: c.lastFetched,
		Error:       c.err,
		Owner:       c.owner,
	}
	if c.primaryData != nil {
		s.PrimaryData = &Payload{raw: bytes.Clone(c.primaryData)}
	}
	if c.userData != nil {
		s.UserData = &Payload{raw: bytes.Clone(c.userData)}
	}
	return s
}

func (c *cache) data(endpoint string) []byte {
	switch endpoint {
	case EndpointPrimary:
		return c.primaryData
	case EndpointDelta:
		return c.userData
	default:
		return nil
	}
}

func (c *cache) store(endpoint string, raw []byte) {
	switch endpoint {
	case EndpointPrimary:
		c.primaryData = raw
	case EndpointDelta:
		c.userData = raw
	}
}
