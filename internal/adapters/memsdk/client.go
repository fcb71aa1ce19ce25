// Package memsdk is an in-process calling SDK. Every entity exposes driver
// methods (AddCall, SetState, ...) that mutate it and emit the same events
// a real SDK would, which makes it the event source for demos and tests.
package memsdk

import (
	"context"
	"sync"

	"github.com/dkeye/callstate/internal/core"
)

type Client struct {
	mu        sync.Mutex
	agent     *Agent
	devices   *DeviceManager
	agentErr  error
	deviceErr error
}

func NewClient() *Client {
	return &Client{devices: NewDeviceManager()}
}

// FailCreateAgent makes the next CreateCallAgent return err.
func (c *Client) FailCreateAgent(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agentErr = err
}

func (c *Client) FailDeviceManager(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deviceErr = err
}

func (c *Client) CreateCallAgent(_ context.Context, opts core.CallAgentOptions) (core.CallAgent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.agentErr; err != nil {
		c.agentErr = nil
		return nil, err
	}
	c.agent = NewAgent(opts.DisplayName)
	return c.agent, nil
}

func (c *Client) GetDeviceManager(context.Context) (core.DeviceManager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.deviceErr; err != nil {
		c.deviceErr = nil
		return nil, err
	}
	return c.devices, nil
}

// Agent returns the last agent created, or nil.
func (c *Client) Agent() *Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agent
}

func (c *Client) Devices() *DeviceManager { return c.devices }

// Error is an SDK error carrying codes, used to exercise CallError codes.
type Error struct {
	Msg        string
	ErrCode    int
	ErrSubcode int
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Code() int     { return e.ErrCode }
func (e *Error) Subcode() int  { return e.ErrSubcode }

// faults holds injected failures keyed by operation name.
type faults struct {
	mu   sync.Mutex
	errs map[string]error
}

func (f *faults) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	f.errs[op] = err
}

func (f *faults) take(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.errs[op]
	delete(f.errs, op)
	return err
}
