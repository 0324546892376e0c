package garmin

import "fmt"

// DownloadFormat selects the representation of an activity download.
type DownloadFormat int

const (
	// FormatOriginal is the zip bundle holding the file the device uploaded (usually FIT).
	FormatOriginal DownloadFormat = iota
	FormatTCX
	FormatGPX
	FormatKML
	FormatCSV
)

var formatNames = map[DownloadFormat]string{
	FormatOriginal: "ORIGINAL",
	FormatTCX:      "TCX",
	FormatGPX:      "GPX",
	FormatKML:      "KML",
	FormatCSV:      "CSV",
}

func (f DownloadFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("DownloadFormat(%d)", int(f))
}

// Extension is the file extension used for stored artifacts.
func (f DownloadFormat) Extension() string {
	switch f {
	case FormatOriginal:
		return "zip"
	case FormatTCX:
		return "tcx"
	case FormatGPX:
		return "gpx"
	case FormatKML:
		return "kml"
	case FormatCSV:
		return "csv"
	}
	return "bin"
}

// path returns the download endpoint for activityID.
func (f DownloadFormat) path(activityID string) (string, error) {
	switch f {
	case FormatOriginal:
		return "/download-service/files/activity/" + activityID, nil
	case FormatTCX, FormatGPX, FormatKML, FormatCSV:
		return fmt.Sprintf("/download-service/export/%s/activity/%s", f.Extension(), activityID), nil
	}
	return "", fmt.Errorf("unsupported download format %s", f)
}

// ParseDownloadFormat accepts the upper-case names, e.g. "GPX".
func ParseDownloadFormat(s string) (DownloadFormat, error) {
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown download format %q", s)
}
