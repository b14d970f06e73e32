package severity

import (
	"encoding/json"

	"github.com/tflnexus/tflnexus/pkg/tfl"
)

const maxAffectedStopNaptans = 5

// AffectedStopNaptans pulls the first few stop identifiers out of a
// disruption's stored affected-stops payload. Malformed or empty payloads
// yield nothing, pushing the caller onto the major-stop fallback.
func AffectedStopNaptans(affectedStopsJSON string) []string {
	if affectedStopsJSON == "" {
		return nil
	}

	var affectedStops []tfl.StopPointRef
	if err := json.Unmarshal([]byte(affectedStopsJSON), &affectedStops); err != nil {
		return nil
	}

	var naptanIDs []string
	for _, stop := range affectedStops {
		if stop.NaptanID == "" {
			continue
		}
		naptanIDs = append(naptanIDs, stop.NaptanID)
		if len(naptanIDs) == maxAffectedStopNaptans {
			break
		}
	}

	return naptanIDs
}
