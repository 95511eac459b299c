package export

import (
	"github.com/comment-export-api/internal/models"
)

// ArchiveExt is the extension of archive unit names
const ArchiveExt = "zip"

// Chunker partitions one video's artifacts into archive units of at most
// bound items, in the order they are accepted. A bound of 0 means a single
// unbounded unit. Unit indexes start at 1 for every Chunker.
type Chunker struct {
	video    *models.Video
	bound    int
	ext      string
	archives *NameSet

	index   int
	current *models.ArchiveUnit
	names   *NameSet
}

// NewChunker creates a Chunker for one video. ext is the artifact file
// extension. archives is shared by every Chunker of a run so archive names
// stay unique across videos; nil gives the Chunker its own set.
func NewChunker(video *models.Video, bound int, ext string, archives *NameSet) *Chunker {
	if bound < 0 {
		bound = 0
	}
	if archives == nil {
		archives = NewNameSet()
	}
	return &Chunker{
		video:    video,
		bound:    bound,
		ext:      ext,
		archives: archives,
	}
}

// Accept adds an artifact and returns the unit it completed, if any
func (c *Chunker) Accept(artifact models.RenderedArtifact) *models.ArchiveUnit {
	if c.current == nil {
		c.index++
		c.current = &models.ArchiveUnit{
			VideoID:    c.video.ID,
			VideoTitle: c.video.Title,
			Index:      c.index,
		}
		if c.bound > 0 {
			c.current.Items = make([]models.RenderedArtifact, 0, c.bound)
		}
		c.names = NewNameSet()
	}

	artifact.FileName = c.names.Claim(artifact.DisplayName, c.ext, artifact.CommentID)
	c.current.Items = append(c.current.Items, artifact)

	if c.bound > 0 && len(c.current.Items) >= c.bound {
		return c.seal()
	}
	return nil
}

// Flush returns the partial unit, or nil when nothing is pending
func (c *Chunker) Flush() *models.ArchiveUnit {
	if c.current == nil || len(c.current.Items) == 0 {
		return nil
	}
	return c.seal()
}

// Units returns how many units have been started
func (c *Chunker) Units() int {
	return c.index
}

func (c *Chunker) seal() *models.ArchiveUnit {
	unit := c.current
	unit.Name = c.archives.Claim(ArchiveBaseName(c.video.Title, unit.Index), ArchiveExt, c.video.ID)
	c.current = nil
	c.names = nil
	return unit
}
