package events

import (
	"encoding/json"
	"time"
)

// ClientUpdateData describes a client change.
type ClientUpdateData struct {
	ClientID string `json:"clientId"`
	Action   string `json:"action"` // created, updated, deleted
}

// MeasurementUpdateData describes a measurement change.
type MeasurementUpdateData struct {
	ClientID string `json:"clientId"`
	StyleID  string `json:"styleId"`
	Action   string `json:"action"` // created, updated
}

// ImportCompleteData summarizes an import.
type ImportCompleteData struct {
	Styles       int `json:"styles"`
	Clients      int `json:"clients"`
	Measurements int `json:"measurements"`
}

// CacheActivatedData names the new asset cache generation.
type CacheActivatedData struct {
	Bucket string `json:"bucket"`
	Assets int    `json:"assets"`
}

func (h *Hub) send(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: raw})
}

// ClientChanged broadcasts a client_update message.
func (h *Hub) ClientChanged(clientID, action string) {
	h.send(MessageTypeClientUpdate, ClientUpdateData{ClientID: clientID, Action: action})
}

// MeasurementChanged broadcasts a measurement_update message.
func (h *Hub) MeasurementChanged(clientID, styleID, action string) {
	h.send(MessageTypeMeasurementUpdate, MeasurementUpdateData{ClientID: clientID, StyleID: styleID, Action: action})
}

// Imported broadcasts an import_complete message.
func (h *Hub) Imported(styles, clients, measurements int) {
	h.send(MessageTypeImportComplete, ImportCompleteData{Styles: styles, Clients: clients, Measurements: measurements})
}

// CacheActivated broadcasts a cache_activated message.
func (h *Hub) CacheActivated(bucket string, assets int) {
	h.send(MessageTypeCacheActivated, CacheActivatedData{Bucket: bucket, Assets: assets})
}
