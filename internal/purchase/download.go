package purchase

import (
	"path"
	"regexp"
	"strings"
)

// downloadSuffix is appended to every suggested download file name.
const downloadSuffix = "_by_aeronautyy.png"

var (
	fileRefStrip  = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	nameStrip     = regexp.MustCompile(`[^A-Za-z0-9 ._-]`)
	nameSpaces    = regexp.MustCompile(`\s+`)
	assetPathBase = "wallpapers"
)

// ValidateFileRef rejects references able to address anything outside the
// asset directory. Applied at selection time.
func ValidateFileRef(ref string) error {
	if strings.Contains(ref, "..") || strings.ContainsAny(ref, `/\`) {
		return ErrUnsafeFileRef
	}
	return nil
}

// SanitizeFileRef strips every character outside [A-Za-z0-9._-] and fails if
// that changed the value. Defense in depth for the case where a stored
// selection bypassed ValidateFileRef.
func SanitizeFileRef(ref string) (string, error) {
	clean := fileRefStrip.ReplaceAllString(ref, "")
	if clean == "" || clean != ref {
		return "", ErrUnsafeFileRef
	}
	return clean, nil
}

// AssetPath builds the public URL path for a sanitized file reference.
func AssetPath(ref string) string {
	return "/" + path.Join(assetPathBase, ref)
}

// DownloadFileName derives the suggested file name from a display name:
// non-alphanumeric characters removed, whitespace collapsed to underscores,
// fixed suffix appended.
func DownloadFileName(name string) string {
	clean := nameStrip.ReplaceAllString(name, "")
	clean = nameSpaces.ReplaceAllString(strings.TrimSpace(clean), "_")
	if clean == "" {
		clean = "wallpaper"
	}
	return clean + downloadSuffix
}
