package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceNames(t *testing.T) {
	assert.Equal(t, "projects/p/secrets/garmin-importer-credentials", SecretName("p", "garmin-importer-credentials"))
	assert.Equal(t, "projects/p/secrets/s/versions/latest", LatestVersion("p", "s"))
}
