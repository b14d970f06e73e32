package disruption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStable(t *testing.T) {
	first := Fingerprint(7, "RealTime", "lineInfo", "2026-08-01T10:00:00Z", "Minor delays")
	second := Fingerprint(7, "RealTime", "lineInfo", "2026-08-01T10:00:00Z", "Minor delays")

	assert.Equal(t, first, second)
}

func TestFingerprintFormat(t *testing.T) {
	fingerprint := Fingerprint(7, "RealTime", "lineInfo", "2026-08-01T10:00:00Z", "Minor delays")

	parts := strings.Split(fingerprint, "-")
	assert.Len(t, parts, 3)
	assert.Equal(t, "disr", parts[0])
	assert.Equal(t, "real", parts[1])
	assert.Len(t, parts[2], 12)
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint(7, "RealTime", "lineInfo", "2026-08-01T10:00:00Z", "Minor delays")

	assert.NotEqual(t, base, Fingerprint(8, "RealTime", "lineInfo", "2026-08-01T10:00:00Z", "Minor delays"))
	assert.NotEqual(t, base, Fingerprint(7, "PlannedWork", "lineInfo", "2026-08-01T10:00:00Z", "Minor delays"))
	assert.NotEqual(t, base, Fingerprint(7, "RealTime", "routeInfo", "2026-08-01T10:00:00Z", "Minor delays"))
	assert.NotEqual(t, base, Fingerprint(7, "RealTime", "lineInfo", "2026-08-01T11:00:00Z", "Minor delays"))
	assert.NotEqual(t, base, Fingerprint(7, "RealTime", "lineInfo", "2026-08-01T10:00:00Z", "Severe delays"))
}

func TestFingerprintTruncatesDescription(t *testing.T) {
	prefix := strings.Repeat("a", 50)

	first := Fingerprint(7, "RealTime", "lineInfo", "2026-08-01T10:00:00Z", prefix+"tail one")
	second := Fingerprint(7, "RealTime", "lineInfo", "2026-08-01T10:00:00Z", prefix+"different tail")

	assert.Equal(t, first, second)
}

func TestFingerprintEmptyFieldsDefaultToUnknown(t *testing.T) {
	withEmpty := Fingerprint(7, "", "", "2026-08-01T10:00:00Z", "Minor delays")
	withUnknown := Fingerprint(7, "Unknown", "Unknown", "2026-08-01T10:00:00Z", "Minor delays")

	assert.Equal(t, withUnknown, withEmpty)
	assert.True(t, strings.HasPrefix(withEmpty, "disr-unkn-"))
}
