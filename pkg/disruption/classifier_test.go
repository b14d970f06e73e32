package disruption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tflnexus/tflnexus/pkg/tfl"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name        string
		description string
		summary     string
		closureText string

		expectFull    bool
		expectPartial bool
	}{
		{
			name:        "minor delays",
			description: "Minor delays due to an earlier signal failure",
		},
		{
			name:        "full suspension",
			description: "Service suspended due to a fire alert",
			expectFull:  true,
		},
		{
			name:          "partial suspension",
			description:   "No service between Aldgate and Baker Street",
			expectPartial: true,
		},
		{
			name:          "both keyword classes classify as partial",
			description:   "Service suspended. Part suspended between Edgware Road and Aldgate.",
			expectPartial: true,
		},
		{
			name:        "closure text considered",
			closureText: "Closed",
			expectFull:  true,
		},
		{
			name:          "summary considered",
			summary:       "Part closure this weekend",
			description:   "Planned engineering works, no service on the branch",
			expectPartial: true,
		},
		{
			name:        "case insensitive",
			description: "SERVICE SUSPENDED",
			expectFull:  true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			classification := Classify(tfl.Disruption{
				Description: testCase.description,
				Summary:     testCase.summary,
				ClosureText: testCase.closureText,
			})

			assert.Equal(t, testCase.expectFull, classification.IsFullSuspension)
			assert.Equal(t, testCase.expectPartial, classification.IsPartialSuspension)
		})
	}
}

func TestClassifySectionBoundaries(t *testing.T) {
	disruption := tfl.Disruption{
		Description: "No service between Aldgate and Baker Street",
		AffectedRoutes: []tfl.AffectedRoute{
			{
				LineID: "circle",
				RouteSectionNaptanEntrySequence: []tfl.RouteSectionNaptanEntry{
					{Ordinal: 2, StopPoint: tfl.StopPointRef{NaptanID: "940GZZLUBST"}},
					{Ordinal: 0, StopPoint: tfl.StopPointRef{NaptanID: "940GZZLUALD"}},
					{Ordinal: 1, StopPoint: tfl.StopPointRef{NaptanID: "940GZZLUKSX"}},
				},
			},
		},
	}

	classification := Classify(disruption)

	assert.True(t, classification.IsPartialSuspension)
	assert.Equal(t, "940GZZLUALD", classification.StartNaptan)
	assert.Equal(t, "940GZZLUBST", classification.EndNaptan)
}

func TestClassifySectionBoundariesSkipsEmptySequences(t *testing.T) {
	disruption := tfl.Disruption{
		Description: "Part closure between two stations",
		AffectedRoutes: []tfl.AffectedRoute{
			{LineID: "district"},
			{
				LineID: "district",
				RouteSectionNaptanEntrySequence: []tfl.RouteSectionNaptanEntry{
					{Ordinal: 0, StopPoint: tfl.StopPointRef{NaptanID: "940GZZLUWLO"}},
					{Ordinal: 1, StopPoint: tfl.StopPointRef{NaptanID: "940GZZLULNB"}},
				},
			},
		},
	}

	classification := Classify(disruption)

	assert.Equal(t, "940GZZLUWLO", classification.StartNaptan)
	assert.Equal(t, "940GZZLULNB", classification.EndNaptan)
}

func TestExtractLineIDs(t *testing.T) {
	lineIDs := ExtractLineIDs([]tfl.AffectedRoute{
		{LineID: "circle"},
		{LineID: "district"},
		{LineID: "circle"},
		{LineID: ""},
		{LineID: "hammersmith-city"},
	})

	assert.Equal(t, []string{"circle", "district", "hammersmith-city"}, lineIDs)
}
