package storage

import "encoding/json"

// DiscoveryFile is the well-known name local collaborators read to find the
// running server.
const DiscoveryFile = "server.json"

// DiscoveryRecord tells local callers where the server listens and how to
// authenticate. Written on server start, removed on server stop.
type DiscoveryRecord struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	AuthToken string `json:"authToken"`
	PID       int    `json:"pid"`
}

// WriteDiscovery publishes the record through the store.
func WriteDiscovery(s Store, rec DiscoveryRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.Write(DiscoveryFile, b)
}

// ReadDiscovery loads a previously published record.
func ReadDiscovery(s Store) (DiscoveryRecord, error) {
	var rec DiscoveryRecord
	b, err := s.Read(DiscoveryFile)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(b, &rec)
	return rec, err
}

// RemoveDiscovery deletes the record so callers stop dialing a dead server.
func RemoveDiscovery(s Store) error {
	return s.Remove(DiscoveryFile)
}
