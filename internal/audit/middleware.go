package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/obs"
)

// Change describes an audited admin route.
type Change struct {
	Action   string
	Resource string
	// IDParam is the chi URL parameter holding the resource id, if any.
	IDParam string
}

// Recorder writes one audit entry per admin change after the handler has
// answered. Rejected and failed changes are recorded too.
type Recorder struct {
	Service Service
}

// Middleware records the change described by c.
func (rec Recorder) Middleware(c Change) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rec.Service.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			sr := obs.NewStatusRecorder(w)
			next.ServeHTTP(sr, r)

			var id string
			if c.IDParam != "" {
				id = chi.URLParam(r, c.IDParam)
			}
			meta, _ := json.Marshal(map[string]string{"outcome": outcome(sr.Status())})
			err := rec.Service.Record(r.Context(), actorOf(r), c.Action, c.Resource, id, r, sr.Status(), meta)
			if err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Str("action", c.Action).Msg("record audit log")
			}
		})
	}
}

func outcome(status int) string {
	switch {
	case status >= 500:
		return "failed"
	case status >= 400:
		return "rejected"
	default:
		return "applied"
	}
}

func actorOf(r *http.Request) Actor {
	if id, ok := common.CustomerID(r.Context()); ok {
		return Actor{Kind: ActorKindAdmin, ID: id}
	}
	return Actor{Kind: ActorKindAnonymous}
}
