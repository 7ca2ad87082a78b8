package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/cityfinder/internal/scoring"
)

const (
	wsMaxLifetime = 30 * time.Minute
	wsWriteWait   = 5 * time.Second
)

// Inbound message types on the round websocket.
const (
	wsClick   = "click"
	wsSkip    = "skip"
	wsHint    = "hint"
	wsAdvance = "advance"
)

type wsRequest struct {
	Type string  `json:"type"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Hint string  `json:"hint,omitempty"`
}

type wsResponse struct {
	Kind    string           `json:"kind"`
	Event   json.RawMessage  `json:"event,omitempty"`
	Verdict *scoring.Verdict `json:"verdict,omitempty"`
	Round   *RoundResponse   `json:"round,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// handleRoundWS upgrades to a websocket carrying map clicks in and verdicts
// and round events out. Both directions share one connection until the round
// ends or either side closes.
func handleRoundWS(logger *slog.Logger, broker *Broker, origins []string) http.HandlerFunc {
	patterns := originHosts(origins)

	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: patterns,
		})
		if err != nil {
			logger.Error("websocket accept failed", "round_id", s.id, "error", err)
			return
		}
		defer conn.CloseNow()

		ch := broker.Subscribe(s.id)
		defer broker.Unsubscribe(s.id, ch)

		ctx, cancel := context.WithTimeout(r.Context(), wsMaxLifetime)
		defer cancel()

		write := func(ctx context.Context, resp wsResponse) error {
			ctx, cancel := context.WithTimeout(ctx, wsWriteWait)
			defer cancel()
			return wsjson.Write(ctx, conn, resp)
		}

		readDone := make(chan struct{})
		var g errgroup.Group

		g.Go(func() error {
			for {
				select {
				case <-readDone:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				case msg := <-ch:
					if err := write(ctx, wsResponse{Kind: "event", Event: msg.Data}); err != nil {
						return err
					}
					if msg.Terminal {
						return conn.Close(websocket.StatusNormalClosure, "round over")
					}
				}
			}
		})

		g.Go(func() error {
			defer close(readDone)
			for {
				var req wsRequest
				if err := wsjson.Read(ctx, conn, &req); err != nil {
					return err
				}
				if err := write(ctx, applyWS(ctx, s, req)); err != nil {
					return err
				}
			}
		})

		err = g.Wait()
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		default:
			logger.Debug("websocket ended", "round_id", s.id, "error", err)
		}
	}
}

// applyWS performs one inbound action against the round.
func applyWS(ctx context.Context, s *session, req wsRequest) wsResponse {
	var (
		v   scoring.Verdict
		err error
	)
	switch req.Type {
	case wsClick:
		v, err = s.round.Guess(ctx, req.Lat, req.Lon)
		if err != nil && v.Hit {
			// The find counted; the client retries with an advance.
			err = nil
		}
	case wsSkip:
		err = s.round.Skip(ctx)
	case wsHint:
		var h scoring.Hint
		if h, err = scoring.ParseHint(req.Hint); err == nil {
			_, _, err = s.round.Reveal(h)
		}
	case wsAdvance:
		err = s.round.RetryDraw(ctx)
	default:
		return wsResponse{Kind: "error", Error: "unknown message type " + req.Type}
	}
	if err != nil {
		return wsResponse{Kind: "error", Error: err.Error()}
	}

	rr := roundResponse(s.id, s.round)
	resp := wsResponse{Kind: "result", Round: &rr}
	if req.Type == wsClick {
		resp.Verdict = &v
	}
	return resp
}

// originHosts turns CORS origins such as http://localhost:3000 into the host
// patterns websocket.AcceptOptions matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}
