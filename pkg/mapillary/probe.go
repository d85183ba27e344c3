// pkg/mapillary/probe.go - Image ID probing
package mapillary

import (
	"context"
	"errors"
)

// ProbeKind classifies the answer to "is this an image id"
type ProbeKind int

const (
	// ProbeTransportFailure means the upstream could not be asked; the id is
	// treated as not being an image id
	ProbeTransportFailure ProbeKind = iota
	// ProbeImage means the id resolved as an image
	ProbeImage
	// ProbeNotFound means no entity has this id
	ProbeNotFound
	// ProbeWrongType means the id exists but is not an image
	ProbeWrongType
)

func (k ProbeKind) String() string {
	switch k {
	case ProbeImage:
		return "image"
	case ProbeNotFound:
		return "not_found"
	case ProbeWrongType:
		return "wrong_type"
	default:
		return "transport_failure"
	}
}

// probeFields are image-only fields; any other entity rejects them
var probeFields = []string{"captured_at", "sequence"}

// Probe is the outcome of ProbeImageID
type Probe struct {
	Kind ProbeKind
	// Err is the upstream error behind every kind except ProbeImage
	Err error
}

// IsImage reports whether the id is an image id
func (p Probe) IsImage() bool {
	return p.Kind == ProbeImage
}

// ProbeImageID asks the Graph endpoint for the id as an image. This is a
// network round trip. Transport failures are folded into the Probe, so the
// only errors returned are a missing token or an empty id.
func (c *Client) ProbeImageID(ctx context.Context, id string) (Probe, error) {
	if err := validateID(id); err != nil {
		return Probe{}, err
	}
	if _, err := c.token(); err != nil {
		return Probe{}, err
	}

	var body map[string]interface{}
	err := c.getGraph(ctx, c.endpoints.EntityURL(id, probeFields), &body)
	c.observer.EntityFetched("probe", outcomeOf(err))

	probe := classifyProbe(err)
	c.logger.Debug().
		Str("id", id).
		Str("kind", probe.Kind.String()).
		Msg("image id probed")
	return probe, nil
}

func classifyProbe(err error) Probe {
	if err == nil {
		return Probe{Kind: ProbeImage}
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.NotFound():
			return Probe{Kind: ProbeNotFound, Err: err}
		case httpErr.ClientError():
			return Probe{Kind: ProbeWrongType, Err: err}
		}
	}
	return Probe{Kind: ProbeTransportFailure, Err: err}
}
