package thumb

import (
	"image/color"
	"net/url"
	"path"
	"strings"
)

// fileType describes a non-HTML resource recognized by URL extension.
// There is no point fetching a render of a binary file, so these map
// straight to a synthesized icon.
type fileType struct {
	Label string
	Color color.RGBA
}

var fileTypes = map[string]fileType{
	"pdf": {Label: "PDF Doc", Color: color.RGBA{R: 179, G: 57, B: 57, A: 255}},

	"zip": {Label: "Archive", Color: color.RGBA{R: 121, G: 85, B: 72, A: 255}},
	"rar": {Label: "Archive", Color: color.RGBA{R: 121, G: 85, B: 72, A: 255}},
	"gz":  {Label: "Archive", Color: color.RGBA{R: 121, G: 85, B: 72, A: 255}},
	"tar": {Label: "Archive", Color: color.RGBA{R: 121, G: 85, B: 72, A: 255}},
	"7z":  {Label: "Archive", Color: color.RGBA{R: 121, G: 85, B: 72, A: 255}},

	"mp3":  {Label: "Audio", Color: color.RGBA{R: 123, G: 31, B: 162, A: 255}},
	"wav":  {Label: "Audio", Color: color.RGBA{R: 123, G: 31, B: 162, A: 255}},
	"flac": {Label: "Audio", Color: color.RGBA{R: 123, G: 31, B: 162, A: 255}},
	"ogg":  {Label: "Audio", Color: color.RGBA{R: 123, G: 31, B: 162, A: 255}},

	"mp4":  {Label: "Video", Color: color.RGBA{R: 21, G: 101, B: 192, A: 255}},
	"avi":  {Label: "Video", Color: color.RGBA{R: 21, G: 101, B: 192, A: 255}},
	"mkv":  {Label: "Video", Color: color.RGBA{R: 21, G: 101, B: 192, A: 255}},
	"mov":  {Label: "Video", Color: color.RGBA{R: 21, G: 101, B: 192, A: 255}},
	"webm": {Label: "Video", Color: color.RGBA{R: 21, G: 101, B: 192, A: 255}},

	"doc":  {Label: "Word Doc", Color: color.RGBA{R: 41, G: 98, B: 155, A: 255}},
	"docx": {Label: "Word Doc", Color: color.RGBA{R: 41, G: 98, B: 155, A: 255}},

	"xls":  {Label: "Spreadsheet", Color: color.RGBA{R: 46, G: 125, B: 50, A: 255}},
	"xlsx": {Label: "Spreadsheet", Color: color.RGBA{R: 46, G: 125, B: 50, A: 255}},

	"ppt":  {Label: "Slides", Color: color.RGBA{R: 230, G: 81, B: 0, A: 255}},
	"pptx": {Label: "Slides", Color: color.RGBA{R: 230, G: 81, B: 0, A: 255}},
}

// fileTypeFor returns the icon descriptor for the URL's path extension,
// if any.
func fileTypeFor(rawURL string) (fileType, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fileType{}, false
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if ext == "" {
		return fileType{}, false
	}
	ft, ok := fileTypes[ext]
	return ft, ok
}
