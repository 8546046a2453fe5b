package safeop

import "io/fs"

// Path is a resolved, absolute filesystem path with the stat info captured
// at resolution time. Paths are created by FilesystemManager.Resolve.
type Path struct {
	absPath string
	info    fs.FileInfo
}

// NewPath creates a Path. Intended for FilesystemManager implementations.
func NewPath(absPath string, info fs.FileInfo) *Path {
	return &Path{absPath: absPath, info: info}
}

// String returns the absolute path.
func (p *Path) String() string {
	return p.absPath
}

// IsRegular reports whether the path was a regular file when resolved.
func (p *Path) IsRegular() bool {
	return p.info != nil && p.info.Mode().IsRegular()
}

// Info returns the cached file info.
func (p *Path) Info() fs.FileInfo {
	return p.info
}
