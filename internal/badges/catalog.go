// Package badges holds the badge catalog and the eligibility rules evaluated
// against a user's progress.
package badges

import "github.com/gdg-garage/airbadge/internal/models"

var catalog = []models.BadgeDefinition{
	{ID: "report_contributor", Name: "Report Contributor", Description: "Submit 5 air quality reports", Icon: "📝", Threshold: 5, TrackingKey: models.KeyReportsSubmitted, Category: models.CategoryReporting},
	{ID: "community_reporter", Name: "Community Reporter", Description: "Submit 25 air quality reports", Icon: "📣", Threshold: 25, TrackingKey: models.KeyReportsSubmitted, Category: models.CategoryReporting},
	{ID: "helpful_voter", Name: "Helpful Voter", Description: "Upvote 10 community reports", Icon: "👍", Threshold: 10, TrackingKey: models.KeyUpvotesGiven, Category: models.CategoryCommunity},
	{ID: "fact_checker", Name: "Fact Checker", Description: "Downvote 10 inaccurate reports", Icon: "🔍", Threshold: 10, TrackingKey: models.KeyDownvotesGiven, Category: models.CategoryCommunity},
	{ID: "quiz_starter", Name: "Quiz Starter", Description: "Complete your first air quality quiz", Icon: "🎓", Threshold: 1, TrackingKey: models.KeyQuizzesCompleted, Category: models.CategoryLearning},
	{ID: "quiz_master", Name: "Quiz Master", Description: "Complete 10 air quality quizzes", Icon: "🧠", Threshold: 10, TrackingKey: models.KeyQuizzesCompleted, Category: models.CategoryLearning},
	{ID: "alert_aware", Name: "Alert Aware", Description: "Open 5 pollution alerts", Icon: "🚨", Threshold: 5, TrackingKey: models.KeyAlertsOpened, Category: models.CategoryAwareness},
	{ID: "city_explorer", Name: "City Explorer", Description: "Check the AQI of 5 different cities", Icon: "🏙️", Threshold: 5, TrackingKey: models.KeyCitiesViewed, Category: models.CategoryExploration},
	{ID: "globe_trotter", Name: "Globe Trotter", Description: "Check the AQI of 15 different cities", Icon: "🌍", Threshold: 15, TrackingKey: models.KeyCitiesViewed, Category: models.CategoryExploration},
	{ID: "air_watcher", Name: "Air Watcher", Description: "Check the AQI 3 days in a row", Icon: "🌤️", Threshold: 3, TrackingKey: models.KeyAQIChecks, Category: models.CategoryConsistency},
	{ID: "week_warrior", Name: "Week Warrior", Description: "Check the AQI 7 days in a row", Icon: "🔥", Threshold: 7, TrackingKey: models.KeyAQIChecks, Category: models.CategoryConsistency},
	{ID: "monthly_guardian", Name: "Monthly Guardian", Description: "Check the AQI 30 days in a row", Icon: "🛡️", Threshold: 30, TrackingKey: models.KeyAQIChecks, Category: models.CategoryConsistency},
}

var byID = func() map[string]models.BadgeDefinition {
	m := make(map[string]models.BadgeDefinition, len(catalog))
	for _, b := range catalog {
		m[b.ID] = b
	}
	return m
}()

// All returns the catalog in display order.
func All() []models.BadgeDefinition {
	out := make([]models.BadgeDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// GetByID looks a definition up. An unknown id is reported through ok.
func GetByID(id string) (def models.BadgeDefinition, ok bool) {
	def, ok = byID[id]
	return def, ok
}
