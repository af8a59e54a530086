// Package pipeline orchestrates one batch of raw tickets through NLP
// enrichment, language detection, geocoding, assignment, and persistence.
package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ticketfire/backend/internal/assign"
	"github.com/ticketfire/backend/internal/geo"
	"github.com/ticketfire/backend/internal/language"
	"github.com/ticketfire/backend/internal/models"
	"github.com/ticketfire/backend/internal/nlp"
)

// Geocoder is the subset of internal/geocode.Provider the pipeline needs,
// narrowed to ease testing with a fake.
type Geocoder interface {
	Geocode(ctx context.Context, country, region, city, street, house string) (*float64, *float64)
}

// Store is the persistence surface the pipeline reads managers/offices
// from and writes batch results to. *db.Store satisfies it.
type Store interface {
	ListManagers(ctx context.Context) ([]models.Manager, error)
	ListOffices(ctx context.Context) ([]models.Office, error)
	UpsertTickets(ctx context.Context, tickets []models.Ticket) error
	SetManagerWorkloads(ctx context.Context, managers []models.Manager) error
}

// Orchestrator wires together the per-batch enrichment and assignment
// stages.
type Orchestrator struct {
	Store    Store
	NLPPool  *nlp.Pool
	Detector *language.Detector
	Geocoder Geocoder
	MaxBatch int
	Logger   zerolog.Logger
}

// New builds an Orchestrator. maxBatch <= 0 defaults to 50.
func New(store Store, pool *nlp.Pool, detector *language.Detector, geocoder Geocoder, maxBatch int, logger zerolog.Logger) *Orchestrator {
	if maxBatch <= 0 {
		maxBatch = 50
	}
	return &Orchestrator{
		Store:    store,
		NLPPool:  pool,
		Detector: detector,
		Geocoder: geocoder,
		MaxBatch: maxBatch,
		Logger:   logger,
	}
}

// Result is what Run hands back: the enriched/assigned tickets plus the
// batch summary, ready to be snapshotted by the caller.
type Result struct {
	SessionID string
	Tickets   []models.Ticket
	Managers  []models.Manager
	Summary   models.BatchSummary
}

// Run pushes one batch of raw tickets through NLP enrichment, language
// detection, geocoding, assignment and persistence, and returns the
// batch result. Persistence failure is the only stage that aborts the
// run; every other per-ticket failure degrades locally and is still
// reflected in the returned tickets and summary.
func (o *Orchestrator) Run(ctx context.Context, raw []models.Ticket) (Result, error) {
	if len(raw) > o.MaxBatch {
		raw = raw[:o.MaxBatch]
	}
	total := len(raw)

	descriptions := make([]string, total)
	segments := make([]string, total)
	for i, t := range raw {
		descriptions[i] = t.Description
		segments[i] = t.Segment
	}

	enriched, err := o.NLPPool.AnalyzeBatch(ctx, descriptions, segments)
	if err != nil {
		return Result{}, err
	}

	var nlpTotalMs int64
	for i := range raw {
		raw[i].RequestType = enriched[i].RequestType
		raw[i].Sentiment = enriched[i].Sentiment
		raw[i].Language = enriched[i].Language
		raw[i].Summary = enriched[i].Summary
		raw[i].NextActions = enriched[i].NextActions
		raw[i].PriorityScore = enriched[i].Priority
		raw[i].InferTimeMs = enriched[i].InferTimeMs
		nlpTotalMs += enriched[i].InferTimeMs

		raw[i].Language = o.Detector.Detect(raw[i].Description)
	}

	// Geocode caches are scoped to one batch.
	if closer, ok := o.Geocoder.(interface{ Close() }); ok {
		defer closer.Close()
	}

	// Geocode fan-out: the provider bounds its own concurrency, results
	// land positionally so completion order doesn't matter.
	g, gctx := errgroup.WithContext(ctx)
	for i := range raw {
		i := i
		g.Go(func() error {
			lat, lon := o.Geocoder.Geocode(gctx, raw[i].Country, raw[i].Region, raw[i].City, raw[i].Street, raw[i].Building)
			raw[i].Latitude = lat
			raw[i].Longitude = lon
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	managers, err := o.Store.ListManagers(ctx)
	if err != nil {
		return Result{}, err
	}
	offices, err := o.Store.ListOffices(ctx)
	if err != nil {
		return Result{}, err
	}
	officeIdx := geo.NewIndex(offices)

	managersByOffice := make(map[string][]*models.Manager)
	for i := range managers {
		normalizeSkills(&managers[i])
		key := strings.ToLower(managers[i].Office)
		managersByOffice[key] = append(managersByOffice[key], &managers[i])
	}

	rr := assign.NewRoundRobinState()
	var okCount, failCount, unmappedCount int

	for i := range raw {
		t := &raw[i]
		nearest, ok := officeIdx.NearestOffice(t.Latitude, t.Longitude)
		if !ok {
			t.Outcome = models.OutcomeUnmapped
			unmappedCount++
			o.Logger.Info().Str("customer_guid", t.CustomerGUID).Str("outcome", "UNMAPPED").Msg("assignment")
			continue
		}

		manager, office, outcome := rr.PickManager(*t, nearest, managersByOffice, officeIdx)
		t.Outcome = outcome
		t.AssignedOfficeName = strPtr(office.Name)
		t.AssignedOfficeAddress = strPtr(office.Address)

		switch outcome {
		case models.OutcomeAssigned:
			t.AssignedManagerName = strPtr(manager.FullName)
			t.AssignedManagerLevel = strPtr(manager.Position)
			okCount++
			o.Logger.Info().Str("customer_guid", t.CustomerGUID).Str("outcome", "OK").Msg("assignment")
		case models.OutcomeSpam:
			failCount++
			o.Logger.Info().Str("customer_guid", t.CustomerGUID).Str("outcome", "FAIL").Msg("assignment")
		case models.OutcomeNoEligibleManager:
			failCount++
			o.Logger.Info().Str("customer_guid", t.CustomerGUID).Str("outcome", "FAIL").Msg("assignment")
		}
	}

	if err := o.Store.UpsertTickets(ctx, raw); err != nil {
		return Result{}, err
	}
	if err := o.Store.SetManagerWorkloads(ctx, managers); err != nil {
		return Result{}, err
	}

	var avgMs int64
	if total > 0 {
		avgMs = nlpTotalMs / int64(total)
	}

	summary := models.BatchSummary{
		SessionID:     uuid.NewString(),
		TicketCount:   total,
		ManagerCount:  len(managers),
		OKCount:       okCount,
		FailCount:     failCount,
		UnmappedCount: unmappedCount,
		Status:        "completed",
		NLPTotalMs:    nlpTotalMs,
		NLPAvgMs:      avgMs,
	}

	return Result{
		SessionID: summary.SessionID,
		Tickets:   raw,
		Managers:  managers,
		Summary:   summary,
	}, nil
}

func normalizeSkills(m *models.Manager) {
	for i, s := range m.Skills {
		m.Skills[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
