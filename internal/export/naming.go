package export

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/comment-export-api/internal/models"
)

// Name part limits, in runes
const (
	videoPartLen   = 15
	authorPartLen  = 10
	textPartLen    = 10
	archiveNameLen = 30
)

// TimestampLayout formats the comment time inside file names. No colons.
const TimestampLayout = "2006-01-02 15-04"

const illegalChars = `<>:"/\|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFilename makes s safe to use inside a file name. Illegal and control
// characters are substituted with '_', whitespace runs become one space, and
// the result is cut to limit runes (limit <= 0 means no limit). Leading and
// trailing dots and spaces are trimmed. The result may be empty.
func SanitizeFilename(s string, limit int) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := false
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size <= 1 {
				r = '_'
			}
		}
		switch {
		case unicode.IsSpace(r):
			if lastSpace {
				continue
			}
			b.WriteRune(' ')
			lastSpace = true
			continue
		case unicode.IsControl(r), strings.ContainsRune(illegalChars, r):
			r = '_'
		}
		b.WriteRune(r)
		lastSpace = false
	}

	out := b.String()
	if limit > 0 && utf8.RuneCountInString(out) > limit {
		out = string([]rune(out)[:limit])
	}
	return strings.Trim(out, " .")
}

func namePart(s string, limit int, placeholder string) string {
	if part := SanitizeFilename(s, limit); part != "" {
		return part
	}
	return placeholder
}

// guardReserved suffixes names that Windows reserves for devices
func guardReserved(name string) string {
	stem := name
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	if reservedNames[strings.ToUpper(strings.TrimSpace(stem))] {
		return name + "_"
	}
	return name
}

// BaseName builds the display name of a comment artifact without extension:
// <video title>_<author>_<text>_<published time>. It only depends on the
// comment and video, so repeated exports produce the same names.
func BaseName(comment *models.Comment, video *models.Video) string {
	title := ""
	if video != nil {
		title = video.Title
	}

	stamp := "undated"
	if !comment.PublishedAt.IsZero() {
		stamp = comment.PublishedAt.UTC().Format(TimestampLayout)
	}

	name := strings.Join([]string{
		namePart(title, videoPartLen, "untitled"),
		namePart(strings.TrimLeft(comment.Author, "@"), authorPartLen, "anonymous"),
		namePart(comment.Text, textPartLen, "comment"),
		stamp,
	}, "_")
	return guardReserved(name)
}

// ArchiveBaseName names the index-th archive of a video, without extension
func ArchiveBaseName(videoTitle string, index int) string {
	return guardReserved(namePart(videoTitle, archiveNameLen, "untitled") + "_" + strconv.Itoa(index))
}

// NameSet hands out unique file names. Names are compared case-insensitively
// so that archives extract cleanly on case-insensitive file systems.
// A NameSet is not safe for concurrent use.
type NameSet struct {
	taken map[string]struct{}
}

// NewNameSet creates an empty NameSet
func NewNameSet() *NameSet {
	return &NameSet{taken: make(map[string]struct{})}
}

// Claim reserves a unique file name built from base and ext (ext without dot,
// may be empty). On a clash the id is appended, then a counter.
func (s *NameSet) Claim(base, ext, id string) string {
	candidates := []string{base}
	if id != "" {
		candidates = append(candidates, base+"_"+SanitizeFilename(id, 0))
	}
	for _, c := range candidates {
		if name, ok := s.tryClaim(c, ext); ok {
			return name
		}
	}

	stem := candidates[len(candidates)-1]
	for n := 2; ; n++ {
		if name, ok := s.tryClaim(stem+"_"+strconv.Itoa(n), ext); ok {
			return name
		}
	}
}

func (s *NameSet) tryClaim(stem, ext string) (string, bool) {
	name := stem
	if ext != "" {
		name += "." + ext
	}
	key := strings.ToLower(name)
	if _, ok := s.taken[key]; ok {
		return "", false
	}
	s.taken[key] = struct{}{}
	return name, true
}

// Len returns the number of claimed names
func (s *NameSet) Len() int {
	return len(s.taken)
}

