package safeop

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ArtifactExt is the extension every backup artifact carries.
const ArtifactExt = ".bak"

// artifactTimeLayout is an ISO-8601 UTC timestamp truncated to seconds with
// ':' replaced by '-' so it is safe in file names.
const artifactTimeLayout = "2006-01-02T15-04-05"

var artifactNameRE = regexp.MustCompile(`^(.+)\.(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2})(?:-(\d+))?\.bak$`)

// Artifact describes one backup artifact in a store.
type Artifact struct {
	Path      string    // absolute path
	Name      string    // file name within the store
	Source    string    // base name of the file it was copied from
	CreatedAt time.Time // timestamp encoded in the name
	Seq       int       // collision counter; 0 for the first artifact of a second
	ModTime   time.Time
	Size      int64
}

// ArtifactName builds "<base>.<timestamp>.bak", or "<base>.<timestamp>-<seq>.bak"
// when seq > 0.
func ArtifactName(base string, at time.Time, seq int) string {
	ts := at.UTC().Format(artifactTimeLayout)
	if seq > 0 {
		ts = fmt.Sprintf("%s-%d", ts, seq)
	}
	return base + "." + ts + ArtifactExt
}

// ParsedName is the decoded form of an artifact file name.
type ParsedName struct {
	Source    string
	CreatedAt time.Time
	Seq       int
}

// ParseArtifactName decodes a name produced by ArtifactName.
// ok is false for anything else, including the operation log.
func ParseArtifactName(name string) (ParsedName, bool) {
	m := artifactNameRE.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}, false
	}
	at, err := time.ParseInLocation(artifactTimeLayout, m[2], time.UTC)
	if err != nil {
		return ParsedName{}, false
	}
	seq := 0
	if m[3] != "" {
		seq, err = strconv.Atoi(m[3])
		if err != nil {
			return ParsedName{}, false
		}
	}
	return ParsedName{Source: m[1], CreatedAt: at, Seq: seq}, true
}

// DeriveOriginalPath recovers an original path from an artifact path by
// stripping the store root and the ".<timestamp>[-n].bak" suffix. This is
// the last-resort lookup used when neither the index nor the log knows the
// artifact; the result is relative unless the stripped name was absolute.
func DeriveOriginalPath(root, backupPath string) string {
	rel := backupPath
	if root != "" {
		if r, err := filepath.Rel(root, backupPath); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	if parsed, ok := ParseArtifactName(filepath.Base(rel)); ok {
		return filepath.Join(filepath.Dir(rel), parsed.Source)
	}
	return strings.TrimSuffix(rel, ArtifactExt)
}

// SortNewestFirst orders artifacts by modification time, most recent first.
// Ties fall back to the name timestamp and collision counter so the order is
// stable for artifacts written within the same filesystem tick.
func SortNewestFirst(artifacts []*Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		a, b := artifacts[i], artifacts[j]
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.After(b.ModTime)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Seq > b.Seq
	})
}
