package source

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"fortio.org/safecast"
)

// FileID identifies a file within a FileSet.
type FileID uint32

// NoFile is the FileID of NoSpan.
const NoFile FileID = math.MaxUint32

// File is a loaded source file with its line table.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	lines   []uint32 // offsets of '\n'
}

// LineCol is a 1-based position.
type LineCol struct {
	Line uint32
	Col  uint32
}

// FileSet owns every file a compilation reads so that spans can be
// rendered back to text.
type FileSet struct {
	files []*File
	index map[string]FileID
}

func NewFileSet() *FileSet {
	return &FileSet{index: make(map[string]FileID)}
}

// Add registers content under path. Adding the same path twice yields two
// distinct ids; lookups by path return the latest.
func (fs *FileSet) Add(path string, content []byte) FileID {
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil || n == uint32(NoFile) {
		panic(fmt.Errorf("source: file count overflow: %w", err))
	}
	id := FileID(n)
	content = bytes.ReplaceAll(bytes.TrimPrefix(content, []byte("\xEF\xBB\xBF")), []byte("\r\n"), []byte("\n"))
	f := &File{ID: id, Path: filepath.ToSlash(filepath.Clean(path)), Content: content}
	for i, b := range content {
		if b == '\n' {
			f.lines = append(f.lines, uint32(i))
		}
	}
	fs.files = append(fs.files, f)
	fs.index[f.Path] = id
	return id
}

// Load reads path from disk and adds it.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path comes from the command line
	content, err := os.ReadFile(path)
	if err != nil {
		return NoFile, err
	}
	return fs.Add(path, content), nil
}

// Get returns the file for id, or nil when id is unknown.
func (fs *FileSet) Get(id FileID) *File {
	if fs == nil || int(id) >= len(fs.files) {
		return nil
	}
	return fs.files[id]
}

// Lookup finds the latest file registered under path.
func (fs *FileSet) Lookup(path string) (FileID, bool) {
	id, ok := fs.index[filepath.ToSlash(filepath.Clean(path))]
	return id, ok
}

// Paths returns the distinct paths of the files in the order they were
// first added.
func (fs *FileSet) Paths() []string {
	out := make([]string, 0, len(fs.index))
	seen := make(map[string]bool, len(fs.index))
	for _, f := range fs.files {
		if !seen[f.Path] {
			seen[f.Path] = true
			out = append(out, filepath.FromSlash(f.Path))
		}
	}
	return out
}

// Len returns the number of files.
func (fs *FileSet) Len() int { return len(fs.files) }

// Resolve converts a span into line/column pairs.
func (fs *FileSet) Resolve(sp Span) (start, end LineCol) {
	f := fs.Get(sp.File)
	if f == nil {
		return LineCol{}, LineCol{}
	}
	return f.Position(sp.Start), f.Position(sp.End)
}

// Position converts a byte offset into a line/column pair.
func (f *File) Position(off uint32) LineCol {
	line := sort.Search(len(f.lines), func(i int) bool { return f.lines[i] >= off })
	var start uint32
	if line > 0 {
		start = f.lines[line-1] + 1
	}
	return LineCol{Line: uint32(line) + 1, Col: off - start + 1}
}

// Line returns the text of a 1-based line without its terminator.
func (f *File) Line(n uint32) string {
	if n == 0 || int(n) > len(f.lines)+1 {
		return ""
	}
	var start uint32
	if n > 1 {
		start = f.lines[n-2] + 1
	}
	end := uint32(len(f.Content))
	if int(n-1) < len(f.lines) {
		end = f.lines[n-1]
	}
	if start > end {
		return ""
	}
	return string(f.Content[start:end])
}
