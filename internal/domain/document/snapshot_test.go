package document_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *document.Snapshot {
	end := 4
	return &document.Snapshot{
		ProjectID: "p1",
		Name:      "Parser review",
		Mode:      "review",
		Files: []document.CodeFile{
			{ID: "f1", Filename: "main.go", Language: "go", DisplayOrder: 0},
			{ID: "f2", Filename: "lex.go", Language: "go", DisplayOrder: 1},
		},
		Contents: map[string]string{
			"f1": "package main\n\nfunc main() {}\n",
			"f2": "package main\n",
		},
		Annotations: []document.Annotation{
			{
				ID: "a1", FileID: "f1", Line: 3, EndLine: &end, Category: document.CategoryQuestion,
				Body: "why empty?", LineText: "func main() {}",
				Replies: []document.Reply{{ID: "r1", AuthorID: "bob", Body: "placeholder"}},
			},
			{ID: "a2", FileID: "f2", Line: 1, Category: document.CategoryPraise, Body: "tidy"},
		},
		Blob: document.SessionBlob{Version: 1, Data: json.RawMessage(`{"tabs":["f1"]}`)},
	}
}

func TestSnapshot_Validate(t *testing.T) {
	require.NoError(t, sampleSnapshot().Validate())

	tests := []struct {
		name   string
		mutate func(s *document.Snapshot)
	}{
		{"missing project", func(s *document.Snapshot) { s.ProjectID = "" }},
		{"duplicate file", func(s *document.Snapshot) { s.Files[1].ID = "f1" }},
		{"empty file id", func(s *document.Snapshot) { s.Files[0].ID = "" }},
		{"duplicate annotation", func(s *document.Snapshot) { s.Annotations[1].ID = "a1" }},
		{"zero line", func(s *document.Snapshot) { s.Annotations[0].Line = 0 }},
		{"end before start", func(s *document.Snapshot) { end := 1; s.Annotations[0].EndLine = &end }},
		{"unknown category", func(s *document.Snapshot) { s.Annotations[0].Category = "rant" }},
		{"empty reply body", func(s *document.Snapshot) { s.Annotations[0].Replies[0].Body = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleSnapshot()
			tt.mutate(s)
			require.ErrorIs(t, s.Validate(), document.ErrInvalidSnapshot)
		})
	}
}

func TestSnapshot_FingerprintIgnoresTimestampsAndWriter(t *testing.T) {
	a := sampleSnapshot()
	b := a.Clone()
	b.Blob.Writer = "someone-else"
	b.Blob.SavedAt = time.Now()
	b.Annotations[0].UpdatedAt = time.Now()
	b.Annotations[0].Replies[0].CreatedAt = time.Now()
	// Order of files and annotations does not matter either.
	b.Files[0], b.Files[1] = b.Files[1], b.Files[0]
	b.Annotations[0], b.Annotations[1] = b.Annotations[1], b.Annotations[0]

	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestSnapshot_FingerprintDetectsChanges(t *testing.T) {
	base := sampleSnapshot().Fingerprint()

	content := sampleSnapshot()
	content.Contents["f2"] = "package lexer\n"
	require.NotEqual(t, base, content.Fingerprint())

	reply := sampleSnapshot()
	reply.Annotations[0].Replies = append(reply.Annotations[0].Replies, document.Reply{ID: "r2", Body: "ok"})
	require.NotEqual(t, base, reply.Fingerprint())

	blob := sampleSnapshot()
	blob.Blob.Data = json.RawMessage(`{"tabs":["f2"]}`)
	require.NotEqual(t, base, blob.Fingerprint())
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	a := sampleSnapshot()
	b := a.Clone()
	b.Contents["f1"] = "changed"
	*b.Annotations[0].EndLine = 9
	b.Annotations[0].Replies[0].Body = "changed"

	require.NotEqual(t, "changed", a.Contents["f1"])
	require.Equal(t, 4, *a.Annotations[0].EndLine)
	require.Equal(t, "placeholder", a.Annotations[0].Replies[0].Body)
}

func TestSnapshot_RemoveFile(t *testing.T) {
	s := sampleSnapshot()
	s.RemoveFile("f1")

	require.Equal(t, []string{"f2"}, s.FileIDs())
	require.NotContains(t, s.Contents, "f1")
	require.Len(t, s.Annotations, 1)
	require.Equal(t, "a2", s.Annotations[0].ID)
}
