package activity

import (
	"fmt"
	"regexp"
)

// GCS URI pattern: gs://bucket/path
var gcsURIPattern = regexp.MustCompile(`^gs://([^/]+)/(.+)$`)

// ArtifactObject builds the object key of an activity file:
// {username}/{beginTimestamp}/{activityId}.{ext}
func ArtifactObject(username string, beginTimestamp int64, activityID, ext string) string {
	return fmt.Sprintf("%s/%d/%s.%s", username, beginTimestamp, activityID, ext)
}

// GCSURI formats a bucket/object pair as gs://bucket/object.
func GCSURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// ParseGCSURI extracts bucket and object path from a GCS URI.
// Returns bucket, object, and bool indicating if the URI was valid.
func ParseGCSURI(uri string) (bucket, object string, ok bool) {
	matches := gcsURIPattern.FindStringSubmatch(uri)
	if len(matches) != 3 {
		return "", "", false
	}
	return matches[1], matches[2], true
}
