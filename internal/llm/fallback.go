package llm

import "errors"

// Route is one ordered fallback target: a provider/model pair plus the
// client that serves it.
type Route struct {
	Provider string
	Model    string
	Client   Client
}

// FallbackEvent is emitted once per failover.
type FallbackEvent struct {
	FromModel     string `json:"from_model"`
	ToModel       string `json:"to_model"`
	ErrorKind     string `json:"error_kind"`
	Status        int    `json:"status,omitempty"`
	FallbackIndex int    `json:"fallback_index"`
}

// FallbackRoutingClient attempts an ordered list of routes, failing over to
// the next only on a retryable error. A non-retryable error returns
// immediately with zero further attempts and zero events.
type FallbackRoutingClient struct {
	Routes []Route
	// OnFallback, if set, receives exactly one FallbackEvent per failover.
	OnFallback func(FallbackEvent)
}

func (c *FallbackRoutingClient) Name() string { return "fallback" }

func errorKind(err error) (kind string, status int) {
	var te *TransportError
	if errors.As(err, &te) {
		if te.Timeout {
			return "timeout", 0
		}
		return "http_status", te.Status
	}
	return "error", 0
}

func (c *FallbackRoutingClient) Complete(req ChatRequest) (ChatResponse, error) {
	return c.run(req, func(route Route, r ChatRequest) (ChatResponse, error) {
		return route.Client.Complete(r)
	})
}

func (c *FallbackRoutingClient) CompleteWithStream(req ChatRequest, sink StreamSink) (ChatResponse, error) {
	return c.run(req, func(route Route, r ChatRequest) (ChatResponse, error) {
		return route.Client.CompleteWithStream(r, sink)
	})
}

func (c *FallbackRoutingClient) run(req ChatRequest, call func(Route, ChatRequest) (ChatResponse, error)) (ChatResponse, error) {
	if len(c.Routes) == 0 {
		return ChatResponse{}, errors.New("llm: fallback: no routes configured")
	}

	var lastErr error
	for i, route := range c.Routes {
		routeReq := req
		routeReq.Model = route.Model
		resp, err := call(route, routeReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return ChatResponse{}, err
		}
		if i == len(c.Routes)-1 {
			break
		}

		kind, status := errorKind(err)
		if c.OnFallback != nil {
			c.OnFallback(FallbackEvent{
				FromModel:     route.Model,
				ToModel:       c.Routes[i+1].Model,
				ErrorKind:     kind,
				Status:        status,
				FallbackIndex: i + 1,
			})
		}
	}
	return ChatResponse{}, lastErr
}
