package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/jobboard/httputil"
	"github.com/dalemusser/jobboard/pantry/db/mongo"
	"github.com/dalemusser/jobboard/pantry/dbconn"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	jobsCollection = "jobs"
	jobsPageSize   = 50
	queryTimeout   = 5 * time.Second
)

// Job is a listing in the jobs collection.
type Job struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Title    string             `bson:"title" json:"title"`
	Company  string             `bson:"company" json:"company"`
	Location string             `bson:"location,omitempty" json:"location,omitempty"`
	PostedAt time.Time          `bson:"posted_at" json:"posted_at"`
}

type jobsResponse struct {
	Jobs     []Job  `json:"jobs"`
	Next     string `json:"next,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// listJobs returns the newest listings, one page at a time. ?after takes
// the next token from the previous page. In degraded mode it answers with
// an empty page instead of failing.
func listJobs(database string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dbconn.Degraded(r.Context()) {
			httputil.WriteJSON(w, http.StatusOK, jobsResponse{Jobs: []Job{}, Degraded: true})
			return
		}
		client, ok := dbconn.HandleFrom[*mongo.Client](r.Context())
		if !ok {
			httputil.JSONError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}

		filter := bson.D{}
		if after := r.URL.Query().Get("after"); after != "" {
			c, ok := mongo.DecodeCursor(after)
			if !ok {
				httputil.JSONError(w, http.StatusBadRequest, "bad_cursor", "The after token is invalid")
				return
			}
			filter = c.Older("posted_at")
		}

		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()

		find := options.Find().
			SetSort(bson.D{{Key: "posted_at", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(jobsPageSize)
		cur, err := client.Database(database).Collection(jobsCollection).Find(ctx, filter, find)
		if err != nil {
			logger.Error("list jobs", zap.Error(err))
			httputil.JSONError(w, http.StatusBadGateway, "query_failed", "Could not load jobs")
			return
		}
		jobs := []Job{}
		if err := cur.All(ctx, &jobs); err != nil {
			logger.Error("decode jobs", zap.Error(err))
			httputil.JSONError(w, http.StatusBadGateway, "query_failed", "Could not load jobs")
			return
		}
		resp := jobsResponse{Jobs: jobs}
		if len(jobs) == jobsPageSize {
			last := jobs[len(jobs)-1]
			resp.Next = mongo.Cursor{At: last.PostedAt, ID: last.ID}.Encode()
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

type connState struct {
	Phase     string `json:"phase"`
	Live      bool   `json:"live"`
	Sequences uint64 `json:"sequences"`
	Attempts  int    `json:"attempts"`
	Waiters   int    `json:"waiters"`
	LastError string `json:"last_error,omitempty"`
}

// stateHandler reports a snapshot of every manager. It never dials.
func stateHandler(deps DBDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]connState)
		for _, c := range deps.All() {
			s := c.State()
			cs := connState{
				Phase:     s.Phase.String(),
				Live:      c.Live(),
				Sequences: s.Sequences,
				Attempts:  s.Attempts,
				Waiters:   s.Waiters,
			}
			if s.LastError != nil {
				cs.LastError = s.LastError.Error()
			}
			out[c.Name] = cs
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}
