package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ReylordDev/psycluster/internal/core/domain"
	"github.com/ReylordDev/psycluster/internal/core/ports/driving"
	"github.com/ReylordDev/psycluster/internal/logger"
)

// connection is one websocket client: a read loop, a single writer
// goroutine, and one pump per broadcast subscription.
type connection struct {
	ws         *websocket.Conn
	dispatcher driving.Dispatcher
	broker     driving.Broker
	limiter    *rate.Limiter

	// out serializes all writes onto the socket.
	out chan envelope
}

func newConnection(ws *websocket.Conn, dispatcher driving.Dispatcher, broker driving.Broker) *connection {
	return &connection{
		ws:         ws,
		dispatcher: dispatcher,
		broker:     broker,
		limiter:    rate.NewLimiter(inboundRate, inboundBurst),
		out:        make(chan envelope, 64),
	}
}

// run services the connection until the client disconnects or ctx is
// cancelled. Broadcast subscriptions are cancelled on the way out.
func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.ws.Close()

	var subs []driving.Subscription
	defer func() {
		for _, sub := range subs {
			sub.Cancel()
		}
	}()

	var wg sync.WaitGroup
	for _, ch := range domain.BroadcastChannels() {
		sub := c.broker.Subscribe(ch.Name)
		subs = append(subs, sub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.pump(ctx, sub)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.write(ctx, cancel)
	}()

	c.read(ctx)
	cancel()
	wg.Wait()
}

// read decodes inbound envelopes and dispatches them.
func (c *connection) read(ctx context.Context) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Websocket read: %v", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.sendError(ctx, "", "rate limit exceeded")
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendError(ctx, "", fmt.Sprintf("%v: malformed envelope: %v", domain.ErrProtocol, err))
			continue
		}

		reply, err := dispatch(ctx, c.dispatcher, env)
		if err != nil {
			c.sendError(ctx, env.ID, err.Error())
			continue
		}
		if reply != nil {
			c.enqueue(ctx, *reply)
		}
	}
}

// write is the single socket writer.
func (c *connection) write(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.out:
			if err := c.ws.WriteJSON(env); err != nil {
				logger.Debug("Websocket write: %v", err)
				cancel()
				return
			}
		}
	}
}

// pump forwards one broadcast subscription onto the socket.
func (c *connection) pump(ctx context.Context, sub driving.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				logger.Warn("Encoding %s broadcast: %v", ev.Channel, err)
				continue
			}
			c.enqueue(ctx, envelope{Channel: ev.Channel, Data: data})
		}
	}
}

// enqueue hands an envelope to the writer unless the connection is
// closing.
func (c *connection) enqueue(ctx context.Context, env envelope) {
	select {
	case c.out <- env:
	case <-ctx.Done():
	}
}

// sendError reports a failure back on the error channel, correlated
// with the originating request when an id is known.
func (c *connection) sendError(ctx context.Context, id, message string) {
	data, err := json.Marshal(domain.ErrorMessage{Error: message})
	if err != nil {
		return
	}
	c.enqueue(ctx, envelope{ID: id, Channel: domain.ChannelError, Data: data})
}
