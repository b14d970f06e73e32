package disruption

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tflnexus/tflnexus/pkg/tfl"
	"golang.org/x/exp/slices"
)

// Classification is the structured reading of a raw disruption's free text.
type Classification struct {
	IsFullSuspension    bool
	IsPartialSuspension bool

	// Boundary stops of the affected section, only set for partial
	// suspensions with a usable affected-route sequence.
	StartNaptan string
	EndNaptan   string
}

var suspensionKeywords = []string{
	"suspended", "no service", "closed", "not running",
	"not stopping", "service suspended",
}

var partialKeywords = []string{
	"part suspended", "partially suspended", "section closed",
	"between", "part closure", "partial closure",
}

// Classify derives suspension flags and affected-section boundaries from a
// disruption's text and route sections. Keyword matching is a heuristic:
// when both keyword classes match, the record is classified partial rather
// than full. That tie-break is deliberate policy and must not be changed
// without versioning downstream consumers.
func Classify(disruption tfl.Disruption) Classification {
	combinedText := strings.ToLower(fmt.Sprintf(
		"%s %s %s",
		disruption.Description, disruption.Summary, disruption.ClosureText,
	))

	hasSuspension := containsAny(combinedText, suspensionKeywords)
	hasPartial := containsAny(combinedText, partialKeywords)

	classification := Classification{
		IsFullSuspension:    hasSuspension && !hasPartial,
		IsPartialSuspension: hasSuspension && hasPartial,
	}

	if classification.IsPartialSuspension {
		classification.StartNaptan, classification.EndNaptan = extractSectionBoundaries(disruption.AffectedRoutes)
	}

	return classification
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}

	return false
}

// extractSectionBoundaries takes the first and last stop of the first
// non-empty affected-route section, ordered by the upstream ordinal field.
func extractSectionBoundaries(affectedRoutes []tfl.AffectedRoute) (string, string) {
	for _, route := range affectedRoutes {
		sequence := make([]tfl.RouteSectionNaptanEntry, len(route.RouteSectionNaptanEntrySequence))
		copy(sequence, route.RouteSectionNaptanEntrySequence)

		if len(sequence) == 0 {
			continue
		}

		sort.SliceStable(sequence, func(a, b int) bool {
			return sequence[a].Ordinal < sequence[b].Ordinal
		})

		startNaptan := sequence[0].StopPoint.NaptanID
		endNaptan := sequence[len(sequence)-1].StopPoint.NaptanID

		if startNaptan != "" && endNaptan != "" {
			return startNaptan, endNaptan
		}
	}

	return "", ""
}

// ExtractLineIDs collects the distinct line ids named by a disruption's
// affected routes, in first-seen order.
func ExtractLineIDs(affectedRoutes []tfl.AffectedRoute) []string {
	var lineIDs []string
	for _, route := range affectedRoutes {
		if route.LineID == "" {
			continue
		}
		if !slices.Contains(lineIDs, route.LineID) {
			lineIDs = append(lineIDs, route.LineID)
		}
	}

	return lineIDs
}
