package events

import (
	"encoding/json"
	"errors"
)

type EventType string

const (
	TypeCrawlCompleted EventType = "crawl_completed"
	TypeGraphBuilt     EventType = "graph_built"
)

// Event is one entry on the investigation audit stream.
type Event struct {
	Type        EventType `json:"type"`
	Session     string    `json:"session"`
	TraceID     string    `json:"trace_id,omitempty"`
	Address     string    `json:"address,omitempty"`
	Blockchain  string    `json:"blockchain,omitempty"`
	Depth       int       `json:"depth,omitempty"`
	CacheKey    string    `json:"cache_key,omitempty"`
	RecordCount int       `json:"record_count,omitempty"`
	NodeCount   int       `json:"node_count,omitempty"`
	EdgeCount   int       `json:"edge_count,omitempty"`
}

func Encode(event Event) ([]byte, error) {
	if event.Type == "" {
		return nil, errors.New("event type is required")
	}
	if event.Session == "" {
		return nil, errors.New("session is required")
	}
	return json.Marshal(event)
}

func Decode(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, err
	}
	if event.Type == "" {
		return Event{}, errors.New("event type is missing")
	}
	if event.Session == "" {
		return Event{}, errors.New("session is missing")
	}
	return event, nil
}
