package api

import (
	"encoding/json"
	"time"

	"github.com/gehhilfe/shopflux/core"
)

type eventDto struct {
	EventID       string          `json:"eventoId"`
	EventType     string          `json:"tipo"`
	AggregateID   string          `json:"agregadoId"`
	AggregateType string          `json:"tipoAgregado"`
	Version       core.Version    `json:"version"`
	Sequence      uint64          `json:"secuencia"`
	OccurredOn    time.Time       `json:"ocurridoEn"`
	CreatedAt     time.Time       `json:"registradoEn"`
	Actor         core.Actor      `json:"actor"`
	Data          json.RawMessage `json:"datos"`
	Metadata      json.RawMessage `json:"metadatos"`
}

func toDto(e core.StoredEvent) eventDto {
	return eventDto{
		EventID:       e.EventID.String(),
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Version:       e.Version,
		Sequence:      e.Sequence,
		OccurredOn:    e.OccurredOn,
		CreatedAt:     e.CreatedAt,
		Actor:         e.Actor,
		Data:          json.RawMessage(e.Data),
		Metadata:      json.RawMessage(e.Metadata),
	}
}

func toDtos(events []core.StoredEvent) []eventDto {
	dtos := make([]eventDto, len(events))
	for i, e := range events {
		dtos[i] = toDto(e)
	}
	return dtos
}
