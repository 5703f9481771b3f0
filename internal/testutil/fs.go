package testutil

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/kartikbazzad/filedb/internal/codec"
	"github.com/spf13/afero"
)

// CountingFs wraps an afero.Fs and counts the document files successfully
// opened for reading. Index artifacts, temp files and directories are not
// counted.
type CountingFs struct {
	afero.Fs
	reads atomic.Int64
}

// NewCountingFs wraps fs. A nil fs wraps the OS filesystem.
func NewCountingFs(fs afero.Fs) *CountingFs {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &CountingFs{Fs: fs}
}

// Reads returns the number of document reads since the last Reset.
func (c *CountingFs) Reads() int {
	return int(c.reads.Load())
}

// Reset zeroes the counter.
func (c *CountingFs) Reset() {
	c.reads.Store(0)
}

func (c *CountingFs) count(name string) {
	if codec.IsDocumentFile(filepath.Base(name)) {
		c.reads.Add(1)
	}
}

func (c *CountingFs) Open(name string) (afero.File, error) {
	f, err := c.Fs.Open(name)
	if err == nil {
		c.count(name)
	}
	return f, err
}

func (c *CountingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := c.Fs.OpenFile(name, flag, perm)
	if err == nil && flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) == 0 {
		c.count(name)
	}
	return f, err
}
