package models

import (
	"encoding/json"
	"time"
)

// MessageRecord is one logged chat turn. The store assigns ID and CreatedAt
// at write time when the caller omits them. Embedding is opaque: it is
// persisted and exported verbatim, never parsed.
type MessageRecord struct {
	ID        string          `json:"id"`
	Sender    string          `json:"sender,omitempty"`
	Text      string          `json:"text"`
	CreatedAt time.Time       `json:"created_at"`
	Embedding json.RawMessage `json:"embedding,omitempty"`
}

// UnmarshalJSON accepts `content` as an alias for `text`. Database-era
// exports carry a sender/content pair; re-uploads of those files must parse
// into the same record shape.
func (m *MessageRecord) UnmarshalJSON(b []byte) error {
	type alias MessageRecord
	aux := struct {
		*alias
		Content string `json:"content"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if m.Text == "" && aux.Content != "" {
		m.Text = aux.Content
	}
	return nil
}
