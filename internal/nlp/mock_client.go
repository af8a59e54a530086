package nlp

import (
	"context"
	"hash/fnv"
)

// MockClient produces deterministic, description-derived analysis without
// calling any model endpoint. Used when no model base URL is configured.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

var mockRequestTypes = []string{
	"Жалоба",
	"Смена данных",
	"Консультация",
	"Претензия",
	"Неработоспособность приложения",
	"Мошеннические действия",
	"Спам",
}

var mockSentiments = []string{"Негативная", "Нейтральная", "Положительная"}

var mockLanguages = []string{"RU", "KZ", "ENG"}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func (m *MockClient) Analyze(ctx context.Context, description string, index, total int) (RawResult, error) {
	h := hashString(description)

	return RawResult{
		RequestType: mockRequestTypes[h%uint64(len(mockRequestTypes))],
		Sentiment:   mockSentiments[(h/7)%uint64(len(mockSentiments))],
		Language:    mockLanguages[(h/21)%uint64(len(mockLanguages))],
		Summary:     "mock summary for review",
		NextActions: "route to manual handling",
	}, nil
}
