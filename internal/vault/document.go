package vault

import "time"

const documentVersion = 1

// Document is the decrypted vault payload. It exists only in memory while
// the vault is unlocked.
type Document struct {
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
	Projects  map[string]*Project `json:"projects"`
}

// Project groups secrets under a unique name.
type Project struct {
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Secrets   map[string]string `json:"secrets"`
}

// ProjectInfo is the metadata view of a project; it never carries values.
type ProjectInfo struct {
	Name        string    `json:"name"`
	SecretCount int       `json:"secretCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newDocument(now time.Time) *Document {
	return &Document{
		Version:   documentVersion,
		CreatedAt: now,
		UpdatedAt: now,
		Projects:  map[string]*Project{},
	}
}
