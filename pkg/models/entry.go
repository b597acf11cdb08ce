package models

import (
	"path/filepath"
	"time"
)

// FileEntry is a metadata snapshot of a filesystem object taken when the
// index was built.
type FileEntry struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	IsFile      bool      `json:"isFile"`
	IsDirectory bool      `json:"isDirectory"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mtime"`
	ChangeTime  time.Time `json:"ctime"`
}

// NewFileEntry builds an entry for path, deriving Name from the last path segment.
func NewFileEntry(path string, isDir bool, size int64, modTime time.Time) FileEntry {
	return FileEntry{
		Path:        path,
		Name:        filepath.Base(path),
		IsFile:      !isDir,
		IsDirectory: isDir,
		Size:        size,
		ModTime:     modTime,
		ChangeTime:  modTime,
	}
}

// Node is a file or folder in a FileIndex. Files carry Content, folders carry
// Files and the UI-only Open flag.
type Node struct {
	FileEntry

	ParentDir string `json:"parentDir"`

	// Files only
	Content string `json:"content,omitempty"`

	// Folders only
	Files FileIndex `json:"files,omitempty"`
	Open  bool      `json:"open,omitempty"`

	// Err marks an entry that could not be read while the index was built.
	Err string `json:"error,omitempty"`
}

// FileIndex maps an absolute path to its node. A folder's Files only ever
// holds direct children.
type FileIndex map[string]*Node

// NewFileNode creates a file node with content.
func NewFileNode(entry FileEntry, parentDir, content string) *Node {
	return &Node{
		FileEntry: entry,
		ParentDir: parentDir,
		Content:   content,
	}
}

// NewFolderNode creates an open folder node.
func NewFolderNode(entry FileEntry, parentDir string, files FileIndex) *Node {
	if files == nil {
		files = FileIndex{}
	}
	return &Node{
		FileEntry: entry,
		ParentDir: parentDir,
		Files:     files,
		Open:      true,
	}
}

// IsFolder reports whether n is a folder node.
func (n *Node) IsFolder() bool {
	return n != nil && n.IsDirectory
}

// Clone returns a shallow copy of n. The Files map is copied, child nodes are shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Files != nil {
		c.Files = make(FileIndex, len(n.Files))
		for k, v := range n.Files {
			c.Files[k] = v
		}
	}
	return &c
}

// WithContent returns a copy of the file node with new content.
func (n *Node) WithContent(content string) *Node {
	c := n.Clone()
	c.Content = content
	c.Size = int64(len(content))
	return c
}

// Clone returns a shallow copy of the index.
func (idx FileIndex) Clone() FileIndex {
	c := make(FileIndex, len(idx))
	for k, v := range idx {
		c[k] = v
	}
	return c
}
