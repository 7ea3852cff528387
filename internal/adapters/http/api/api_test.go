package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"matchwire/internal/adapters/http/api"
	"matchwire/internal/domain/event"
)

// Mock implementations for testing

type mockIngestor struct {
	submitted []event.Event
	submitErr error
}

func (m *mockIngestor) Submit(ctx context.Context, e event.Event) (event.Event, error) {
	if m.submitErr != nil {
		return event.Event{}, m.submitErr
	}
	if err := e.Validate(); err != nil {
		return event.Event{}, err
	}
	if e.EventID == "" {
		e.EventID = "generated-id"
	}
	m.submitted = append(m.submitted, e)
	return e, nil
}

type mockReader struct {
	records []event.Record
	readErr error

	lastMatchID    string
	lastEventType  string
	lastLimit      int
	lastStartAfter string
}

func (m *mockReader) MatchTimeline(ctx context.Context, matchID string, limit int, startAfter string) ([]event.Record, error) {
	m.lastMatchID, m.lastLimit, m.lastStartAfter = matchID, limit, startAfter
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.records, nil
}

func (m *mockReader) TypeTimeline(ctx context.Context, matchID, eventType string, limit int, startAfter string) ([]event.Record, error) {
	m.lastMatchID, m.lastEventType, m.lastLimit, m.lastStartAfter = matchID, eventType, limit, startAfter
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]event.Record, 0, len(m.records))
	for _, r := range m.records {
		if r.EventType == eventType {
			out = append(out, r)
		}
	}
	return out, nil
}

func testRecord(eventType, ts, player string) event.Record {
	return event.Record{
		Event: event.Event{
			EventID:   "id-" + ts,
			MatchID:   "match-123",
			EventType: eventType,
			Timestamp: ts,
			TeamID:    "home",
			PlayerID:  player,
		},
		Season: "2024/2025",
	}
}

const validEventBody = `{
	"match_id": "match-123",
	"event_type": "goal",
	"timestamp": "2024-11-02T20:15:00Z",
	"team_id": "home",
	"player_id": "Nadia Keita",
	"details": {"minute": 67}
}`

func TestRouter(t *testing.T) {
	Convey("Given an assembled router", t, func() {
		ing := &mockIngestor{}
		reader := &mockReader{records: []event.Record{
			testRecord("goal", "2024-11-02T20:15:00Z", "keita"),
			testRecord("pass", "2024-11-02T20:16:00Z", "costa"),
		}}
		router := api.NewRouter(api.NewServer(ing, reader, 100), nil, 0)

		Convey("Then the health endpoint responds", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then the metrics endpoint responds", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then a valid event submission is accepted", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("POST", "/events", strings.NewReader(validEventBody)))
			So(w.Code, ShouldEqual, http.StatusAccepted)

			var ack struct {
				Accepted bool   `json:"accepted"`
				EventID  string `json:"event_id"`
			}
			So(json.NewDecoder(w.Body).Decode(&ack), ShouldBeNil)
			So(ack.Accepted, ShouldBeTrue)
			So(ack.EventID, ShouldEqual, "generated-id")
			So(len(ing.submitted), ShouldEqual, 1)
		})

		Convey("Then the match timeline endpoint returns the events", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/matches/match-123", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			var recs []event.Record
			So(json.NewDecoder(w.Body).Decode(&recs), ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
			So(reader.lastMatchID, ShouldEqual, "match-123")
		})

		Convey("Then the type timeline endpoint filters by type", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/matches/match-123/goal", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			var recs []event.Record
			So(json.NewDecoder(w.Body).Decode(&recs), ShouldBeNil)
			So(len(recs), ShouldEqual, 1)
			So(recs[0].EventType, ShouldEqual, "goal")
			So(reader.lastEventType, ShouldEqual, "goal")
		})

		Convey("Then unknown routes return 404", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/unknown", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then GET on /events is rejected", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/events", nil))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestEventsHandler(t *testing.T) {
	Convey("Given an events handler", t, func() {
		ing := &mockIngestor{}
		handler := api.NewEventsHandler(ing)

		Convey("When the event is valid", func() {
			w := httptest.NewRecorder()
			handler.HandlePostEvent(w, httptest.NewRequest("POST", "/events", strings.NewReader(validEventBody)))

			Convey("Then it responds 202 with the assigned id", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"accepted":true`)
				So(w.Body.String(), ShouldContainSubstring, "generated-id")
			})
		})

		Convey("When the caller supplies an event id", func() {
			body := strings.Replace(validEventBody, `"match_id"`, `"event_id": "evt-7", "match_id"`, 1)
			w := httptest.NewRecorder()
			handler.HandlePostEvent(w, httptest.NewRequest("POST", "/events", strings.NewReader(body)))

			Convey("Then the id is kept", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, "evt-7")
			})
		})

		Convey("When the body is not JSON", func() {
			w := httptest.NewRecorder()
			handler.HandlePostEvent(w, httptest.NewRequest("POST", "/events", strings.NewReader("{nope")))

			Convey("Then it responds 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, `"error"`)
			})
		})

		Convey("When a required field is missing", func() {
			body := `{"event_type":"goal","timestamp":"2024-11-02T20:15:00Z","team_id":"home","player_id":"x"}`
			w := httptest.NewRecorder()
			handler.HandlePostEvent(w, httptest.NewRequest("POST", "/events", strings.NewReader(body)))

			Convey("Then the error names the field", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "match_id")
			})
		})

		Convey("When the timestamp has a non-zero offset", func() {
			body := strings.Replace(validEventBody, "2024-11-02T20:15:00Z", "2024-11-02T20:15:00+01:00", 1)
			w := httptest.NewRecorder()
			handler.HandlePostEvent(w, httptest.NewRequest("POST", "/events", strings.NewReader(body)))

			Convey("Then it responds 400 naming the timestamp", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "timestamp")
			})
		})

		Convey("When publishing fails downstream", func() {
			ing.submitErr = errors.New("broker unavailable")
			w := httptest.NewRecorder()
			handler.HandlePostEvent(w, httptest.NewRequest("POST", "/events", strings.NewReader(validEventBody)))

			Convey("Then it responds 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

// matchRequest builds a request with chi URL params injected, for driving
// handlers without the router.
func matchRequest(target string, params map[string]string) *http.Request {
	req := httptest.NewRequest("GET", target, nil)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestMatchesHandler(t *testing.T) {
	Convey("Given a matches handler", t, func() {
		reader := &mockReader{records: []event.Record{
			testRecord("goal", "2024-11-02T20:15:00Z", "keita"),
		}}
		handler := api.NewMatchesHandler(reader, 50)

		Convey("When querying a match with events", func() {
			w := httptest.NewRecorder()
			handler.HandleMatchTimeline(w, matchRequest("/matches/match-123", map[string]string{"match_id": "match-123"}))

			Convey("Then it returns a JSON array", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")

				var recs []event.Record
				So(json.NewDecoder(w.Body).Decode(&recs), ShouldBeNil)
				So(len(recs), ShouldEqual, 1)
				So(recs[0].Season, ShouldEqual, "2024/2025")
			})
		})

		Convey("When the match has no events", func() {
			reader.records = nil
			w := httptest.NewRecorder()
			handler.HandleMatchTimeline(w, matchRequest("/matches/empty", map[string]string{"match_id": "empty"}))

			Convey("Then it returns an empty array, not null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When pagination parameters are passed", func() {
			w := httptest.NewRecorder()
			handler.HandleMatchTimeline(w, matchRequest(
				"/matches/match-123?limit=10&start_after=2024-11-02T20:00:00Z",
				map[string]string{"match_id": "match-123"}))

			Convey("Then they reach the reader", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(reader.lastLimit, ShouldEqual, 10)
				So(reader.lastStartAfter, ShouldEqual, "2024-11-02T20:00:00Z")
			})
		})

		Convey("When the limit is not a number", func() {
			w := httptest.NewRecorder()
			handler.HandleMatchTimeline(w, matchRequest("/matches/match-123?limit=ten", map[string]string{"match_id": "match-123"}))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit exceeds the maximum", func() {
			w := httptest.NewRecorder()
			handler.HandleMatchTimeline(w, matchRequest("/matches/match-123?limit=51", map[string]string{"match_id": "match-123"}))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "limit")
		})

		Convey("When start_after is not a UTC timestamp", func() {
			w := httptest.NewRecorder()
			handler.HandleMatchTimeline(w, matchRequest("/matches/match-123?start_after=yesterday", map[string]string{"match_id": "match-123"}))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the event type contains the key separator", func() {
			w := httptest.NewRecorder()
			handler.HandleTypeTimeline(w, matchRequest("/matches/match-123/goal", map[string]string{
				"match_id":   "match-123",
				"event_type": "goal#2024",
			}))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the reader fails", func() {
			reader.readErr = errors.New("store down")
			w := httptest.NewRecorder()
			handler.HandleMatchTimeline(w, matchRequest("/matches/match-123", map[string]string{"match_id": "match-123"}))

			Convey("Then it responds 500 without leaking the cause", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldNotContainSubstring, "store down")
			})
		})
	})
}

func TestIdempotencyMiddleware(t *testing.T) {
	Convey("Given a router with the idempotency layer", t, func() {
		ing := &mockIngestor{}
		// Nothing listens on this address; the middleware must treat redis
		// failure as a bypass, not an outage.
		rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
		router := api.NewRouter(api.NewServer(ing, &mockReader{}, 100), rdb, time.Minute)

		Convey("When a request carries no Idempotency-Key", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("POST", "/events", strings.NewReader(validEventBody)))

			Convey("Then it passes straight through", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When redis is unreachable", func() {
			req := httptest.NewRequest("POST", "/events", strings.NewReader(validEventBody))
			req.Header.Set("Idempotency-Key", "key-1")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Convey("Then the request is still served", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When reads bypass the middleware entirely", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/matches/match-123", nil)
			req.Header.Set("Idempotency-Key", "key-2")
			router.ServeHTTP(w, req)

			Convey("Then they are unaffected", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}
