package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ticketfire/backend/internal/language"
	"github.com/ticketfire/backend/internal/models"
	"github.com/ticketfire/backend/internal/nlp"
)

// fixtureYAML seeds the manager/office directory the assignment stage
// reads, in the same shape the CSV upload would produce.
const fixtureYAML = `
managers:
  - manager_id: M1
    full_name: Aigerim S.
    position: Specialist
    office: Astana
    skills: [VIP, KZ]
  - manager_id: M2
    full_name: Daniyar K.
    position: ChiefSpecialist
    office: Astana
    skills: [VIP]
offices:
  - name: Astana
    address: Mangilik El 55
    lat: 51.1694
    lon: 71.4491
  - name: Almaty
    address: Abay 10
    lat: 43.2220
    lon: 76.8512
`

type fixture struct {
	Managers []struct {
		ManagerID string   `yaml:"manager_id"`
		FullName  string   `yaml:"full_name"`
		Position  string   `yaml:"position"`
		Office    string   `yaml:"office"`
		Skills    []string `yaml:"skills"`
	} `yaml:"managers"`
	Offices []struct {
		Name    string   `yaml:"name"`
		Address string   `yaml:"address"`
		Lat     *float64 `yaml:"lat"`
		Lon     *float64 `yaml:"lon"`
	} `yaml:"offices"`
}

func loadFixture(t *testing.T) ([]models.Manager, []models.Office) {
	t.Helper()
	var f fixture
	if err := yaml.Unmarshal([]byte(fixtureYAML), &f); err != nil {
		t.Fatalf("fixture did not parse: %v", err)
	}
	var managers []models.Manager
	for _, m := range f.Managers {
		managers = append(managers, models.Manager{
			ManagerID: m.ManagerID,
			FullName:  m.FullName,
			Position:  m.Position,
			Office:    m.Office,
			Skills:    m.Skills,
		})
	}
	var offices []models.Office
	for _, o := range f.Offices {
		offices = append(offices, models.Office{
			Name:      o.Name,
			Address:   o.Address,
			Latitude:  o.Lat,
			Longitude: o.Lon,
		})
	}
	return managers, offices
}

type fakeStore struct {
	managers []models.Manager
	offices  []models.Office

	upserted  []models.Ticket
	workloads []models.Manager
}

func (s *fakeStore) ListManagers(ctx context.Context) ([]models.Manager, error) {
	return s.managers, nil
}

func (s *fakeStore) ListOffices(ctx context.Context) ([]models.Office, error) {
	return s.offices, nil
}

func (s *fakeStore) UpsertTickets(ctx context.Context, tickets []models.Ticket) error {
	s.upserted = append([]models.Ticket(nil), tickets...)
	return nil
}

func (s *fakeStore) SetManagerWorkloads(ctx context.Context, managers []models.Manager) error {
	s.workloads = append([]models.Manager(nil), managers...)
	return nil
}

type fixedClient struct {
	byIndex map[int]nlp.RawResult
}

func (c *fixedClient) Analyze(ctx context.Context, description string, index, total int) (nlp.RawResult, error) {
	if r, ok := c.byIndex[index]; ok {
		return r, nil
	}
	return nlp.RawResult{RequestType: "Консультация", Sentiment: "Нейтральная", Language: "RU"}, nil
}

type cityGeocoder struct {
	coords map[string][2]float64
}

func (g *cityGeocoder) Geocode(ctx context.Context, country, region, city, street, house string) (*float64, *float64) {
	c, ok := g.coords[city]
	if !ok {
		return nil, nil
	}
	lat, lon := c[0], c[1]
	return &lat, &lon
}

var testDetector = language.New()

func newTestOrchestrator(t *testing.T, client nlp.Client) (*Orchestrator, *fakeStore) {
	t.Helper()
	managers, offices := loadFixture(t)
	store := &fakeStore{managers: managers, offices: offices}
	pool := nlp.NewPool(client, nlp.Settings{ModelID: "gemma3:1b", Concurrency: 2})
	geocoder := &cityGeocoder{coords: map[string][2]float64{
		"Астана": {51.1605, 71.4704},
		"Алматы": {43.2380, 76.9452},
	}}
	return New(store, pool, testDetector, geocoder, 50, zerolog.Nop()), store
}

// A ticket classified as spam gets priority 1, the nearest office, and
// never a manager.
func TestRun_SpamNeverAssigns(t *testing.T) {
	client := &fixedClient{byIndex: map[int]nlp.RawResult{
		0: {RequestType: "Спам", Sentiment: "Нейтральная", Language: "RU"},
	}}
	orch, store := newTestOrchestrator(t, client)

	res, err := orch.Run(context.Background(), []models.Ticket{{
		CustomerGUID: "c-1",
		Segment:      models.SegmentMass,
		Description:  "Buy cheap watches now!",
		Country:      "Казахстан",
		City:         "Астана",
	}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got := res.Tickets[0]
	if got.PriorityScore != 1 {
		t.Fatalf("priority = %d, want 1 for spam", got.PriorityScore)
	}
	if got.AssignedManagerName != nil {
		t.Fatalf("spam ticket must never get a manager, got %q", *got.AssignedManagerName)
	}
	if got.AssignedOfficeName == nil || *got.AssignedOfficeName != "Astana" {
		t.Fatalf("spam ticket should still resolve nearest office, got %v", got.AssignedOfficeName)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected 1 persisted ticket, got %d", len(store.upserted))
	}
}

// A foreign ticket the geocoder can't place is UNMAPPED with all
// assignment fields null.
func TestRun_UnmappedForeignTicket(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fixedClient{})

	res, err := orch.Run(context.Background(), []models.Ticket{{
		CustomerGUID: "c-2",
		Segment:      models.SegmentMass,
		Description:  "I moved abroad and need help",
		Country:      "USA",
		City:         "Chicago",
	}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got := res.Tickets[0]
	if got.Outcome != models.OutcomeUnmapped {
		t.Fatalf("outcome = %v, want Unmapped", got.Outcome)
	}
	if got.AssignedManagerName != nil || got.AssignedOfficeName != nil {
		t.Fatalf("unmapped ticket must have null assignment fields, got %+v", got)
	}
	if res.Summary.UnmappedCount != 1 {
		t.Fatalf("UnmappedCount = %d, want 1", res.Summary.UnmappedCount)
	}
}

// Workload deltas across managers sum to the number of assigned
// tickets.
func TestRun_WorkloadDeltasMatchAssignedCount(t *testing.T) {
	client := &fixedClient{byIndex: map[int]nlp.RawResult{}}
	orch, store := newTestOrchestrator(t, client)

	batch := []models.Ticket{
		{CustomerGUID: "c-1", Segment: models.SegmentMass, Description: "Карта не работает", City: "Астана"},
		{CustomerGUID: "c-2", Segment: models.SegmentMass, Description: "Вопрос по тарифу", City: "Астана"},
		{CustomerGUID: "c-3", Segment: models.SegmentMass, Description: "Приложение зависает", City: "Алматы"},
	}
	res, err := orch.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var workloadSum int
	for _, m := range store.workloads {
		workloadSum += m.Workload
	}
	if workloadSum != res.Summary.OKCount {
		t.Fatalf("workload sum %d != assigned count %d", workloadSum, res.Summary.OKCount)
	}
	if res.Summary.TicketCount != 3 {
		t.Fatalf("TicketCount = %d, want 3", res.Summary.TicketCount)
	}
}

func TestRun_TruncatesToMaxBatch(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fixedClient{})
	orch.MaxBatch = 2

	batch := []models.Ticket{
		{CustomerGUID: "c-1", Description: "a", City: "Астана"},
		{CustomerGUID: "c-2", Description: "b", City: "Астана"},
		{CustomerGUID: "c-3", Description: "c", City: "Астана"},
	}
	res, err := orch.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Summary.TicketCount != 2 || len(store.upserted) != 2 {
		t.Fatalf("expected batch truncated to 2, got summary=%d upserted=%d",
			res.Summary.TicketCount, len(store.upserted))
	}
}

func TestRun_MintsFreshSessionID(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fixedClient{})

	first, err := orch.Run(context.Background(), []models.Ticket{{CustomerGUID: "c-1", Description: "a", City: "Астана"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	second, err := orch.Run(context.Background(), []models.Ticket{{CustomerGUID: "c-1", Description: "a", City: "Астана"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if first.SessionID == "" || first.SessionID == second.SessionID {
		t.Fatalf("each run must mint a fresh session id, got %q and %q", first.SessionID, second.SessionID)
	}
}
