// Package gateway exposes the broker's channel catalog over a
// websocket endpoint.
//
// Each connection exchanges JSON envelopes {id?, channel, data}. The
// channel names the catalog entry; commands are fire-and-forget,
// queries are answered with one envelope on the paired reply channel
// carrying the request's correlation id, and broadcast channels are
// fanned out to every open connection. Inbound traffic is rate limited
// per connection.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ReylordDev/psycluster/internal/core/domain"
	"github.com/ReylordDev/psycluster/internal/core/ports/driving"
	"github.com/ReylordDev/psycluster/internal/logger"
)

// Inbound rate limit per connection. Generous for an interactive
// client, tight enough to keep a runaway loop from starving the broker.
const (
	inboundRate  = rate.Limit(50)
	inboundBurst = 100
)

// envelope is the wire frame for both directions.
type envelope struct {
	// ID correlates a query with its reply. Optional for commands.
	ID string `json:"id,omitempty"`

	// Channel is a name from the channel catalog.
	Channel string `json:"channel"`

	// Data is the channel's payload, if any.
	Data json.RawMessage `json:"data,omitempty"`
}

// Server serves the websocket gateway.
type Server struct {
	dispatcher driving.Dispatcher
	broker     driving.Broker
	upgrader   websocket.Upgrader
}

// NewServer creates a gateway over the given dispatcher and broker.
func NewServer(dispatcher driving.Dispatcher, broker driving.Broker) *Server {
	return &Server{
		dispatcher: dispatcher,
		broker:     broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gateway binds to localhost; the desktop client is not
			// a browser, so origin checks do not apply.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler: the websocket endpoint at /ws and a
// health probe at /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// handleWS upgrades the connection and runs it until the client goes
// away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed: %v", err)
		return
	}

	conn := newConnection(ws, s.dispatcher, s.broker)
	logger.Debug("Client connected: %s", r.RemoteAddr)
	conn.run(r.Context())
	logger.Debug("Client disconnected: %s", r.RemoteAddr)
}

// dispatch executes one inbound envelope. The returned envelope is the
// query reply, nil for commands.
func dispatch(ctx context.Context, d driving.Dispatcher, env envelope) (*envelope, error) {
	ch, ok := domain.ChannelByName(env.Channel)
	if !ok {
		return nil, fmt.Errorf("%w: unknown channel %q", domain.ErrProtocol, env.Channel)
	}
	if ch.Direction != domain.ClientToBroker {
		return nil, fmt.Errorf("%w: channel %q is not client-to-broker", domain.ErrProtocol, env.Channel)
	}

	var payload any
	if ch.NewPayload != nil {
		payload = ch.NewPayload()
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return nil, fmt.Errorf("%w: decoding %s payload: %v", domain.ErrProtocol, env.Channel, err)
		}
	}

	switch env.Channel {
	case domain.ChannelSetFilePath:
		return nil, d.SetFilePath(ctx, payload.(*domain.FilePathPayload).FilePath)

	case domain.ChannelGetFilePath:
		return reply(ch, env.ID, domain.FilePathPayload{FilePath: d.GetFilePath(ctx)})

	case domain.ChannelSetFileSettings:
		return nil, d.SetFileSettings(ctx, *payload.(*domain.FileSettings))

	case domain.ChannelSetAlgorithmSettings:
		return nil, d.SetAlgorithmSettings(ctx, *payload.(*domain.AlgorithmSettings))

	case domain.ChannelRunClustering:
		return nil, d.RunClustering(ctx)

	case domain.ChannelGetRuns:
		msg, err := d.GetRuns(ctx)
		if err != nil {
			return nil, err
		}
		return reply(ch, env.ID, msg)

	case domain.ChannelGetCurrentRun:
		msg, err := d.GetCurrentRun(ctx)
		if err != nil {
			return nil, err
		}
		return reply(ch, env.ID, msg)

	case domain.ChannelGetAssignments:
		msg, err := d.GetClusterAssignments(ctx)
		if err != nil {
			return nil, err
		}
		return reply(ch, env.ID, msg)

	case domain.ChannelGetSimilarities:
		msg, err := d.GetClusterSimilarities(ctx)
		if err != nil {
			return nil, err
		}
		return reply(ch, env.ID, msg)

	case domain.ChannelGetOutliers:
		msg, err := d.GetOutliers(ctx)
		if err != nil {
			return nil, err
		}
		return reply(ch, env.ID, msg)

	case domain.ChannelGetMergers:
		msg, err := d.GetMergers(ctx)
		if err != nil {
			return nil, err
		}
		return reply(ch, env.ID, msg)

	case domain.ChannelUpdateRunName:
		p := payload.(*domain.RunNamePayload)
		return nil, d.UpdateRunName(ctx, p.RunID, p.Name)

	case domain.ChannelUpdateClusterName:
		p := payload.(*domain.ClusterNamePayload)
		return nil, d.UpdateClusterName(ctx, p.ClusterID, p.Name)

	case domain.ChannelDeleteRun:
		return nil, d.DeleteRun(ctx, payload.(*domain.RunPayload).RunID)

	case domain.ChannelSetRunID:
		return nil, d.SetRunID(ctx, payload.(*domain.RunPayload).RunID)

	case domain.ChannelResetRunID:
		return nil, d.ResetRunID(ctx)

	default:
		return nil, fmt.Errorf("%w: channel %q has no handler", domain.ErrProtocol, env.Channel)
	}
}

// reply builds the reply envelope for a query, carrying the request's
// correlation id.
func reply(ch domain.Channel, id string, payload any) (*envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s reply: %w", ch.Reply, err)
	}
	return &envelope{ID: id, Channel: ch.Reply, Data: data}, nil
}
