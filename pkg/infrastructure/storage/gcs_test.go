package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"runner@example.com/1700000000000/1.zip": "application/zip",
		"runner@example.com/1700000000000/1.gpx": "application/gpx+xml",
		"a/b/c.csv":                              "text/csv",
		"no-extension":                           "application/octet-stream",
	}
	for object, want := range cases {
		assert.Equal(t, want, contentType(object), object)
	}
}
