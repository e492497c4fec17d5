package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const DefaultRequestTimeout = 10 * time.Second

// ErrRemote wraps the message of an error reply.
var ErrRemote = errors.New("service returned an error")

// Client sends requests to a Server over NATS.
type Client struct {
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
}

// NewClient uses the subjects under prefix. A timeout of zero or less
// means DefaultRequestTimeout.
func NewClient(nc *nats.Conn, prefix string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{nc: nc, prefix: prefix, timeout: timeout}
}

// decodeReply unmarshals data into out unless it is an error reply.
func decodeReply(data []byte, out any) error {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	if e.Error != "" {
		return fmt.Errorf("%w: %s", ErrRemote, e.Error)
	}
	return json.Unmarshal(data, out)
}

func (c *Client) request(op string, req, out any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	res, err := c.nc.Request(c.prefix+"."+op, data, c.timeout)
	if err != nil {
		if c.nc.LastError() != nil {
			log.Error().Msgf("%v for request", c.nc.LastError())
		}
		return err
	}
	log.Debug().Str("op", op).Int("bytes", len(res.Data)).Msg("reply-received")
	return decodeReply(res.Data, out)
}

func (c *Client) Rate(req RateRequest) (*RateResponse, error) {
	var resp RateResponse
	if err := c.request(OpRate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Schedule(req ScheduleRequest) (*ScheduleResponse, error) {
	var resp ScheduleResponse
	if err := c.request(OpSchedule, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Pair(req PairRequest) (*PairResponse, error) {
	var resp PairResponse
	if err := c.request(OpPair, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
