package disruption

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// Fingerprint derives the stable identity of one disruption as seen by one
// service. A single upstream disruption spanning several services fans out
// into one record per service, so the upstream identifier cannot be used.
//
// The inputs (service id, category, type, created timestamp, first 50
// bytes of description) and the md5/12-hex-char recipe are a
// compatibility-sensitive contract: changing them changes every future
// identity.
func Fingerprint(serviceID uint, category string, disruptionType string, created string, description string) string {
	if category == "" {
		category = "Unknown"
	}
	if disruptionType == "" {
		disruptionType = "Unknown"
	}
	if len(description) > 50 {
		description = description[:50]
	}

	baseString := fmt.Sprintf("%d:%s:%s:%s:%s", serviceID, category, disruptionType, created, description)
	hashSuffix := fmt.Sprintf("%x", md5.Sum([]byte(baseString)))[:12]

	categoryPrefix := strings.ToLower(category)
	if len(categoryPrefix) > 4 {
		categoryPrefix = categoryPrefix[:4]
	}

	return fmt.Sprintf("disr-%s-%s", categoryPrefix, hashSuffix)
}
