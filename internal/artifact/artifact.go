// Package artifact describes the file produced by one completed capture.
package artifact

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/example/deskcap/internal/capture"
)

// Artifact is the normalized result of a capture. Path, Kind and Options
// are fixed at creation; the message fields are filled in by dispatch.
type Artifact struct {
	ID        uuid.UUID
	Kind      capture.Kind
	Path      string
	Dir       string
	Filename  string
	Options   capture.Options
	Selection *capture.Selection
	CreatedAt time.Time

	ExtraActionMessage string
	ClipboardMessage   string
	Link               string
	Demo               bool
}

var now = time.Now

// New builds an Artifact for the file at path.
func New(kind capture.Kind, path string, opts capture.Options, sel *capture.Selection) *Artifact {
	path = filepath.Clean(path)
	return &Artifact{
		ID:        uuid.New(),
		Kind:      kind,
		Path:      path,
		Dir:       filepath.Dir(path),
		Filename:  filepath.Base(path),
		Options:   opts,
		Selection: sel,
		CreatedAt: now(),
	}
}

// FileURI returns the file:// URI of the artifact.
func (a *Artifact) FileURI() string { return fileURI(a.Path) }

// DirURI returns the file:// URI of the containing directory.
func (a *Artifact) DirURI() string { return fileURI(a.Dir) }

func fileURI(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
