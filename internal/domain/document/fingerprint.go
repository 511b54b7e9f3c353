package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

type canonicalFile struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	Language     string `json:"language"`
	DisplayOrder int    `json:"display_order"`
	Content      string `json:"content"`
}

type canonicalDoc struct {
	Name        string          `json:"name"`
	Mode        string          `json:"mode"`
	Files       []canonicalFile `json:"files"`
	Annotations []Annotation    `json:"annotations"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Fingerprint returns a SHA-256 digest of the snapshot's shared content.
// Timestamps, denormalized parent ids and the blob's writer stamp are excluded so two snapshots of the
// same document compare equal regardless of who saved them last.
func (s *Snapshot) Fingerprint() string {
	doc := canonicalDoc{Name: s.Name, Mode: s.Mode, Data: s.Blob.Data}

	for _, f := range s.Files {
		doc.Files = append(doc.Files, canonicalFile{
			ID:           f.ID,
			Filename:     f.Filename,
			Language:     f.Language,
			DisplayOrder: f.DisplayOrder,
			Content:      s.Contents[f.ID],
		})
	}
	sort.Slice(doc.Files, func(i, j int) bool { return doc.Files[i].ID < doc.Files[j].ID })

	for _, a := range s.Annotations {
		a.ProjectID = ""
		a.CreatedAt, a.UpdatedAt = time.Time{}, time.Time{}
		replies := make([]Reply, len(a.Replies))
		for i, r := range a.Replies {
			r.ProjectID, r.AnnotationID = "", ""
			r.CreatedAt = time.Time{}
			replies[i] = r
		}
		sort.Slice(replies, func(i, j int) bool { return replies[i].ID < replies[j].ID })
		a.Replies = replies
		doc.Annotations = append(doc.Annotations, a)
	}
	sort.Slice(doc.Annotations, func(i, j int) bool { return doc.Annotations[i].ID < doc.Annotations[j].ID })

	raw, _ := json.Marshal(doc)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
