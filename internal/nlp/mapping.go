package nlp

import (
	"strings"

	"github.com/ticketfire/backend/internal/models"
)

// requestTypeMap folds the model's raw Russian (or occasional English)
// request_type label onto the canonical seven-value enumerator.
// Unknowns fold to Consultation.
var requestTypeMap = map[string]string{
	"жалоба":                           models.TypeComplaint,
	"complaint":                        models.TypeComplaint,
	"смена данных":                     models.TypeDataChange,
	"change of data":                   models.TypeDataChange,
	"data change":                      models.TypeDataChange,
	"консультация":                     models.TypeConsultation,
	"consultation":                     models.TypeConsultation,
	"претензия":                        models.TypeClaim,
	"claim":                            models.TypeClaim,
	"неработоспособность приложения":   models.TypeAppMalfunction,
	"app malfunction":                  models.TypeAppMalfunction,
	"technical issue":                  models.TypeAppMalfunction,
	"мошеннические действия":           models.TypeFraudulentActivity,
	"fraud":                            models.TypeFraudulentActivity,
	"fraudulent activity":              models.TypeFraudulentActivity,
	"спам":                             models.TypeSpam,
	"spam":                             models.TypeSpam,
}

func mapRequestType(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := requestTypeMap[v]; ok {
		return canonical
	}
	return models.TypeConsultation
}

var sentimentMap = map[string]string{
	"негативная":    models.SentimentNegative,
	"negative":      models.SentimentNegative,
	"нейтральная":   models.SentimentNeutral,
	"neutral":       models.SentimentNeutral,
	"положительная": models.SentimentPositive,
	"positive":      models.SentimentPositive,
}

func mapSentiment(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := sentimentMap[v]; ok {
		return canonical
	}
	return models.SentimentNeutral
}
