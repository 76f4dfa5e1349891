package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gehhilfe/shopflux/audit"
	"github.com/gehhilfe/shopflux/core"
)

// ListEventsHandler serves GET /eventos?skip=&take=. take is clamped server
// side, never trusted from the client.
func ListEventsHandler(q *audit.QueryService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		skip, err := intParam(r, "skip", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		take, err := intParam(r, "take", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		events, err := q.List(r.Context(), skip, take)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDtos(events))
	}
}

func windowFilter(r *http.Request) (audit.Filter, error) {
	from, err := timeParam(r, "desde")
	if err != nil {
		return audit.Filter{}, err
	}
	to, err := timeParam(r, "hasta")
	if err != nil {
		return audit.Filter{}, err
	}
	return audit.Filter{From: from, To: to}, nil
}

// EventsByTypeHandler serves GET /eventos/tipo/{tipo}?desde=&hasta=.
func EventsByTypeHandler(q *audit.QueryService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := windowFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.TypeContains = r.PathValue("tipo")

		events, err := q.Search(r.Context(), filter, 0, audit.MaxTake)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDtos(events))
	}
}

// EventsByUserHandler serves GET /eventos/usuario/{usuarioId}?desde=&hasta=.
func EventsByUserHandler(q *audit.QueryService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := windowFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.UserContains = r.PathValue("usuarioId")

		events, err := q.Search(r.Context(), filter, 0, audit.MaxTake)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDtos(events))
	}
}

// EventsByAggregateHandler serves GET /eventos/agregado/{agregadoId}: the
// full ordered history of one aggregate.
func EventsByAggregateHandler(q *audit.QueryService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := q.ByAggregate(r.Context(), r.PathValue("agregadoId"))
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDtos(events))
	}
}

// RecentEventsHandler serves GET /eventos/recientes?horas=, clamped to one
// week.
func RecentEventsHandler(q *audit.QueryService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, err := intParam(r, "horas", 24)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		events, err := q.Recent(r.Context(), hours)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDtos(events))
	}
}

// ReportHandler serves GET /reporte?desde=&hasta=. Out-of-bound windows are
// rejected immediately instead of triggering an unbounded scan.
func ReportHandler(q *audit.QueryService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := timeParam(r, "desde")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		to, err := timeParam(r, "hasta")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if from.IsZero() || to.IsZero() {
			writeError(w, http.StatusBadRequest, fmt.Errorf("desde and hasta are required"))
			return
		}

		report, err := q.Report(r.Context(), from, to)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// StatsHandler serves GET /estadisticas.
func StatsHandler(q *audit.QueryService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := q.Stats(r.Context())
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

type searchDto struct {
	Type        string `json:"tipo"`
	UserID      string `json:"usuarioId"`
	AggregateID string `json:"agregadoId"`
	From        string `json:"desde"`
	To          string `json:"hasta"`
	Skip        int    `json:"skip"`
	Take        int    `json:"take"`
}

// SearchHandler serves POST /buscar: composite filter search with
// pagination.
func SearchHandler(q *audit.QueryService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var dto searchDto
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		filter := audit.Filter{
			TypeContains: dto.Type,
			UserContains: dto.UserID,
			AggregateID:  dto.AggregateID,
		}
		var err error
		if dto.From != "" {
			if filter.From, err = parseTime("desde", dto.From); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		if dto.To != "" {
			if filter.To, err = parseTime("hasta", dto.To); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}

		events, err := q.Search(r.Context(), filter, dto.Skip, dto.Take)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDtos(events))
	}
}

// StreamEventsHandler serves GET /eventos/stream?start= as a server-sent
// event feed tailing the audit log live.
func StreamEventsHandler(store core.Store) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var start uint64
		if v := r.URL.Query().Get("start"); v != "" {
			if _, err := fmt.Sscan(v, &start); err != nil {
				http.Error(w, "Bad request", http.StatusBadRequest)
				return
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		encoder := json.NewEncoder(w)

		for event, err := range core.Iterate(r.Context(), store, start) {
			if err != nil {
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", err)
				w.(http.Flusher).Flush()
				return
			}

			select {
			case <-r.Context().Done():
				return
			default:
			}

			fmt.Fprint(w, "data: ")
			encoder.Encode(toDto(event))
			fmt.Fprint(w, "\n")
			w.(http.Flusher).Flush()
		}
	}
}
