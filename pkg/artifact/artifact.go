package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Artifact is the immutable text output of one pipeline stage.
type Artifact struct {
	Stage     string    `json:"stage"`
	Content   string    `json:"content"`
	Adapter   string    `json:"adapter"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Hash      string    `json:"hash"`
}

// New creates an Artifact with computed hash.
func New(stage, content, adapter, model string) *Artifact {
	a := &Artifact{
		Stage:     stage,
		Content:   content,
		Adapter:   adapter,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
	a.Hash = a.computeHash()
	return a
}

// Verify reports whether the content still matches the recorded hash.
func (a *Artifact) Verify() bool {
	return a != nil && a.Hash == a.computeHash()
}

func (a *Artifact) computeHash() string {
	h := sha256.New()
	h.Write([]byte(a.Stage))
	h.Write([]byte{0})
	h.Write([]byte(a.Content))
	h.Write([]byte{0})
	h.Write([]byte(a.Adapter))
	h.Write([]byte{0})
	h.Write([]byte(a.Model))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
