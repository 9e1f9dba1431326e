// Package relay fans backend change events out to devices. Each device
// opens a WebSocket per subscription, names the group and tables it cares
// about, and receives the matching events as JSON text frames. The relay
// holds no state beyond live connections; a device that misses events
// recovers on its next full re-fetch.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/auth"
	"github.com/punishroulette/roulette/internal/models"
)

// Subscriber provides per-connection change-event streams. *cache.Bus
// satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, tables ...string) (<-chan models.ChangeEvent, error)
}

var validTables = map[string]bool{
	models.TableGroups:      true,
	models.TableMembers:     true,
	models.TablePunishments: true,
	models.TableRecords:     true,
	models.TableSuggestions: true,
	models.TableUnlocks:     true,
}

// FeedHandler upgrades /feed requests and streams change events for one
// group. Authentication is a session JWT in the "token" query parameter
// (WebSocket clients cannot set arbitrary headers from every platform).
func FeedHandler(logger *logrus.Logger, sub Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		userIDStr, err := auth.AuthenticateJWT(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		groupID, err := uuid.Parse(r.URL.Query().Get("group"))
		if err != nil {
			http.Error(w, "invalid group id", http.StatusBadRequest)
			return
		}

		tables := r.URL.Query()["table"]
		if len(tables) == 0 {
			http.Error(w, "missing table", http.StatusBadRequest)
			return
		}
		for _, t := range tables {
			if !validTables[t] {
				http.Error(w, "unknown table: "+t, http.StatusBadRequest)
				return
			}
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"roulette-feed"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		log := logger.WithFields(logrus.Fields{
			"user":   userIDStr,
			"group":  groupID,
			"tables": strings.Join(tables, ","),
		})
		log.Info("feed subscribed")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		events, err := sub.Subscribe(ctx, tables...)
		if err != nil {
			log.Warnf("event subscribe failed: %v", err)
			c.Close(websocket.StatusInternalError, "subscribe failed")
			return
		}

		// Drain reads so we notice the client closing; the feed is one-way.
		go func() {
			for {
				if _, _, err := c.Read(ctx); err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				log.Info("feed closed")
				c.Close(websocket.StatusNormalClosure, "feed closed")
				return
			case ev, ok := <-events:
				if !ok {
					c.Close(websocket.StatusNormalClosure, "event stream ended")
					return
				}
				if ev.GroupID != groupID {
					continue
				}
				data, err := json.Marshal(ev)
				if err != nil {
					log.Warnf("event marshal failed: %v", err)
					continue
				}
				if err := c.Write(ctx, websocket.MessageText, data); err != nil {
					log.Warnf("feed write failed: %v", err)
					cancel()
				}
			}
		}
	}
}
