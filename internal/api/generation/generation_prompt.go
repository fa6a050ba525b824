package generation

import (
	"fmt"
	"strings"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

func generateItineraryPrompt(req types.GenerateItineraryRequest) string {
	interests := "general sightseeing, local food"
	if len(req.Interests) > 0 {
		interests = strings.Join(req.Interests, ", ")
	}
	budget := "no fixed budget"
	if req.Budget > 0 {
		budget = fmt.Sprintf("a total budget of about %d VND", req.Budget)
	}
	return fmt.Sprintf(`
        Plan a %d-day trip to %s for a traveller interested in: [%s], with %s.
        Costs are whole numbers in Vietnamese dong (VND), 0 for free activities.
        time_slot is one of "morning", "afternoon", "evening", "night".
        Return the response STRICTLY as a JSON object with:
        {
        "summary": "A short paragraph describing the trip",
        "days": [
            {
            "day_number": <int starting at 1>,
            "theme": "Short theme of the day",
            "description": "One or two sentences about the day",
            "activities": [
                {
                "name": "Name of the activity",
                "location": "Where it takes place",
                "time_slot": "morning",
                "duration_minutes": <int>,
                "cost": <int>,
                "activity_type": "sightseeing | food | culture | nature | shopping | transport | other",
                "optional": <bool>
                }
            ]
            }
        ]
        }`, req.DurationDays, req.Destination, interests, budget)
}
