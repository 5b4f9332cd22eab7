package common

import "strings"

var mimeExtensions = map[string]string{
	"audio/webm":  ".webm",
	"video/webm":  ".webm",
	"audio/ogg":   ".ogg",
	"audio/mp4":   ".m4a",
	"video/mp4":   ".mp4",
	"audio/mpeg":  ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/aac":   ".aac",
}

// ExtensionForMimeType returns a file extension for a recording MIME type,
// ignoring codec parameters such as "audio/webm;codecs=opus". Unknown types
// map to ".bin".
func ExtensionForMimeType(mimeType string) string {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if ext, ok := mimeExtensions[base]; ok {
		return ext
	}
	return ".bin"
}
