// Package db persists enriched tickets, managers and offices to Postgres
// and feeds the read-only analytics surface.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketfire/backend/internal/models"
)

// Store wraps a pgx connection pool. A batch's ticket upsert runs inside
// a single transaction; the manager workload write-back runs in a
// second one.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// EnsureSchema creates the three tables on first run. Safe to call on
// every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tickets_final_enriched (
			customer_guid TEXT PRIMARY KEY,
			gender TEXT, date_of_birth TEXT, description TEXT, attachments TEXT,
			client_segment TEXT, country TEXT, region TEXT, city TEXT, street TEXT, building TEXT,
			lat DOUBLE PRECISION, lon DOUBLE PRECISION,
			request_type TEXT, sentiment TEXT, priority INT, language TEXT,
			summary TEXT, next_actions TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS managers (
			manager_id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			position TEXT,
			office TEXT,
			skills TEXT,
			active BOOLEAN,
			active_tickets_count INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS business_units (
			office TEXT PRIMARY KEY,
			address TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// assignmentColumns are created on demand rather than at table creation
// so that a pre-existing tickets table from an earlier deploy picks them
// up idempotently on the next upsert.
var assignmentColumns = []string{
	`ALTER TABLE tickets_final_enriched ADD COLUMN IF NOT EXISTS assigned_manager_name TEXT`,
	`ALTER TABLE tickets_final_enriched ADD COLUMN IF NOT EXISTS assigned_manager_level TEXT`,
	`ALTER TABLE tickets_final_enriched ADD COLUMN IF NOT EXISTS assigned_office TEXT`,
	`ALTER TABLE tickets_final_enriched ADD COLUMN IF NOT EXISTS assigned_office_address TEXT`,
}

// UpsertTickets writes the batch's enrichment and assignment columns in
// one transaction, idempotent on customer_guid: a re-run of the same
// batch overwrites only those columns and never the demographic ones.
func (s *Store) UpsertTickets(ctx context.Context, tickets []models.Ticket) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range assignmentColumns {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		batch := &pgx.Batch{}
		for _, t := range tickets {
			batch.Queue(`
				INSERT INTO tickets_final_enriched (
					customer_guid, gender, date_of_birth, description, attachments,
					client_segment, country, region, city, street, building,
					lat, lon, request_type, sentiment, priority, language, summary, next_actions,
					assigned_manager_name, assigned_manager_level, assigned_office, assigned_office_address
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
				ON CONFLICT (customer_guid) DO UPDATE SET
					request_type = EXCLUDED.request_type,
					sentiment = EXCLUDED.sentiment,
					priority = EXCLUDED.priority,
					language = EXCLUDED.language,
					summary = EXCLUDED.summary,
					next_actions = EXCLUDED.next_actions,
					lat = EXCLUDED.lat,
					lon = EXCLUDED.lon,
					assigned_manager_name = EXCLUDED.assigned_manager_name,
					assigned_manager_level = EXCLUDED.assigned_manager_level,
					assigned_office = EXCLUDED.assigned_office,
					assigned_office_address = EXCLUDED.assigned_office_address
			`,
				t.CustomerGUID, t.Gender, t.DateOfBirth, t.Description, t.Attachments,
				t.Segment, t.Country, t.Region, t.City, t.Street, t.Building,
				t.Latitude, t.Longitude, t.RequestType, t.Sentiment, t.PriorityScore, t.Language, t.Summary, t.NextActions,
				t.AssignedManagerName, t.AssignedManagerLevel, t.AssignedOfficeName, t.AssignedOfficeAddress,
			)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for range tickets {
			if _, err := br.Exec(); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetManagerWorkloads writes back the absolute in-memory workload the
// assigner computed for the batch, one statement per manager in a
// single transaction.
func (s *Store) SetManagerWorkloads(ctx context.Context, managers []models.Manager) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range managers {
			batch.Queue(`UPDATE managers SET active_tickets_count = $1 WHERE manager_id = $2`, m.Workload, m.ManagerID)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for range managers {
			if _, err := br.Exec(); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListManagers returns every manager row, used to seed the in-memory
// assignment state for a batch. Skills travel as a comma-string in the
// managers table and are split here.
func (s *Store) ListManagers(ctx context.Context) ([]models.Manager, error) {
	rows, err := s.Pool.Query(ctx, `SELECT manager_id, full_name, position, skills, office, active, active_tickets_count FROM managers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Manager
	for rows.Next() {
		var m models.Manager
		var skills *string
		var active *bool
		if err := rows.Scan(&m.ManagerID, &m.FullName, &m.Position, &skills, &m.Office, &active, &m.Workload); err != nil {
			return nil, err
		}
		m.Skills = splitSkills(skills)
		m.Active = active
		out = append(out, m)
	}
	return out, rows.Err()
}

func splitSkills(raw *string) []string {
	if raw == nil {
		return nil
	}
	var out []string
	for _, s := range strings.Split(*raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ListOffices returns every business-unit row, used to build the
// geographic index for nearest-office resolution.
func (s *Store) ListOffices(ctx context.Context) ([]models.Office, error) {
	rows, err := s.Pool.Query(ctx, `SELECT office, address, latitude, longitude FROM business_units`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Office
	for rows.Next() {
		var o models.Office
		var address *string
		if err := rows.Scan(&o.Name, &address, &o.Latitude, &o.Longitude); err != nil {
			return nil, err
		}
		if address != nil {
			o.Address = *address
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertOffices loads the business-unit directory, idempotent on office
// name.
func (s *Store) InsertOffices(ctx context.Context, offices []models.Office) error {
	batch := &pgx.Batch{}
	for _, o := range offices {
		batch.Queue(`
			INSERT INTO business_units (office, address, latitude, longitude)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (office) DO UPDATE SET address = EXCLUDED.address, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude
		`, o.Name, o.Address, o.Latitude, o.Longitude)
	}
	br := s.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range offices {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertManagers loads the manager directory, idempotent on manager_id.
// Skills are joined back into the comma-string form the managers table
// carries.
func (s *Store) InsertManagers(ctx context.Context, managers []models.Manager) error {
	batch := &pgx.Batch{}
	for _, m := range managers {
		batch.Queue(`
			INSERT INTO managers (manager_id, full_name, position, skills, office, active, active_tickets_count)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (manager_id) DO UPDATE SET
				full_name = EXCLUDED.full_name,
				position = EXCLUDED.position,
				skills = EXCLUDED.skills,
				office = EXCLUDED.office,
				active = EXCLUDED.active
		`, m.ManagerID, m.FullName, m.Position, strings.Join(m.Skills, ","), m.Office, m.Active, m.Workload)
	}
	br := s.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range managers {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// TicketQuery narrows the rows get_tickets/filter_tickets returns.
type TicketQuery struct {
	RequestType string
	Language    string
	Office      string
	MinPriority int
	Limit       int
	Offset      int
}

const ticketColumns = `customer_guid, gender, date_of_birth, description, attachments,
	client_segment, country, region, city, street, building, lat, lon,
	request_type, sentiment, priority, language, summary, next_actions,
	assigned_manager_name, assigned_manager_level, assigned_office, assigned_office_address`

// ListTickets returns enriched tickets matching the given filters,
// reachable from the Q&A tool surface and the analytics endpoint.
func (s *Store) ListTickets(ctx context.Context, q TicketQuery) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets_final_enriched`
	var args []any
	var wheres []string
	if q.RequestType != "" {
		args = append(args, q.RequestType)
		wheres = append(wheres, fmt.Sprintf("request_type = $%d", len(args)))
	}
	if q.Language != "" {
		args = append(args, q.Language)
		wheres = append(wheres, fmt.Sprintf("language = $%d", len(args)))
	}
	if q.Office != "" {
		args = append(args, q.Office)
		wheres = append(wheres, fmt.Sprintf("assigned_office = $%d", len(args)))
	}
	if q.MinPriority > 0 {
		args = append(args, q.MinPriority)
		wheres = append(wheres, fmt.Sprintf("priority >= $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY priority DESC LIMIT %d OFFSET %d", limit, q.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// filterTicketsFields is filter_tickets' allowed field set.
var filterTicketsFields = map[string]bool{
	"client_segment": true, "request_type": true, "sentiment": true, "language": true,
	"assigned_manager_level": true, "assigned_office": true,
	"city": true, "country": true, "region": true, "gender": true,
	"assigned_manager_name": true,
}

// FilterTickets returns tickets where field equals value, case
// insensitively, up to limit rows; a limit outside 1..50 falls back to
// 30. field must be in the allowed set.
func (s *Store) FilterTickets(ctx context.Context, field, value string, limit int) ([]models.Ticket, error) {
	if !filterTicketsFields[field] {
		return nil, fmt.Errorf("field must be one of the allowed ticket fields, got %q", field)
	}
	if limit <= 0 || limit > 50 {
		limit = 30
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets_final_enriched WHERE LOWER(%s) = LOWER($1) LIMIT $2`, ticketColumns, field)
	rows, err := s.Pool.Query(ctx, query, value, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]models.Ticket, error) {
	var out []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(
			&t.CustomerGUID, &t.Gender, &t.DateOfBirth, &t.Description, &t.Attachments,
			&t.Segment, &t.Country, &t.Region, &t.City, &t.Street, &t.Building, &t.Latitude, &t.Longitude,
			&t.RequestType, &t.Sentiment, &t.PriorityScore, &t.Language, &t.Summary, &t.NextActions,
			&t.AssignedManagerName, &t.AssignedManagerLevel, &t.AssignedOfficeName, &t.AssignedOfficeAddress,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TicketStats is the aggregate get_ticket_stats returns: totals, an
// assigned/unassigned split, average priority, and per-field
// distributions.
type TicketStats struct {
	Total             int            `json:"total"`
	AssignedCount     int            `json:"assigned_count"`
	UnassignedCount   int            `json:"unassigned_count"`
	AvgPriority       float64        `json:"avg_priority"`
	BySentiment       map[string]int `json:"by_sentiment"`
	BySegment         map[string]int `json:"by_segment"`
	ByRequestType      map[string]int `json:"by_request_type"`
	ByLanguage         map[string]int `json:"by_language"`
	ByAssignedLevel    map[string]int `json:"by_assigned_level"`
	ByAssignedOffice   map[string]int `json:"by_assigned_office"`
}

func (s *Store) TicketStats(ctx context.Context) (TicketStats, error) {
	stats := TicketStats{
		BySentiment:      map[string]int{},
		BySegment:        map[string]int{},
		ByRequestType:    map[string]int{},
		ByLanguage:       map[string]int{},
		ByAssignedLevel:  map[string]int{},
		ByAssignedOffice: map[string]int{},
	}
	if err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(priority), 0) FROM tickets_final_enriched`,
	).Scan(&stats.Total, &stats.AvgPriority); err != nil {
		return stats, err
	}
	if err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets_final_enriched WHERE assigned_manager_name IS NOT NULL AND assigned_manager_name != ''`,
	).Scan(&stats.AssignedCount); err != nil {
		return stats, err
	}
	stats.UnassignedCount = stats.Total - stats.AssignedCount

	dists := []struct {
		col  string
		into map[string]int
	}{
		{"request_type", stats.ByRequestType},
		{"sentiment", stats.BySentiment},
		{"client_segment", stats.BySegment},
		{"language", stats.ByLanguage},
		{"assigned_manager_level", stats.ByAssignedLevel},
		{"assigned_office", stats.ByAssignedOffice},
	}
	for _, d := range dists {
		query := fmt.Sprintf(
			`SELECT %s, COUNT(*) FROM tickets_final_enriched WHERE %s IS NOT NULL AND %s != '' GROUP BY %s`,
			d.col, d.col, d.col, d.col,
		)
		if err := fillCounts(ctx, s.Pool, query, d.into); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// crossBreakdownFields is the closed set of columns get_cross_breakdown
// may group by. These names are interpolated into SQL, so the
// allow-list also guards against injection through the two free-form
// tool arguments.
var crossBreakdownFields = map[string]bool{
	"client_segment": true, "request_type": true, "sentiment": true, "language": true,
	"assigned_office": true, "assigned_manager_level": true, "gender": true,
	"country": true, "region": true, "city": true,
}

// CrossRow is one row of a two-field cross-tabulation.
type CrossRow struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Count     int    `json:"count"`
}

// CrossBreakdown groups ticket counts by two fields simultaneously, for
// questions like "sentiment by segment". Both fields must be in the
// allowed set; an unknown field returns an error rather than querying
// an attacker-controlled column name.
func (s *Store) CrossBreakdown(ctx context.Context, groupBy, secondaryGroup string) ([]CrossRow, error) {
	if !crossBreakdownFields[groupBy] {
		return nil, fmt.Errorf("group_by must be one of the allowed ticket fields, got %q", groupBy)
	}
	if !crossBreakdownFields[secondaryGroup] {
		return nil, fmt.Errorf("secondary_group must be one of the allowed ticket fields, got %q", secondaryGroup)
	}

	query := fmt.Sprintf(`
		SELECT %s, %s, COUNT(*) AS count
		FROM tickets_final_enriched
		WHERE %s IS NOT NULL AND %s != '' AND %s IS NOT NULL AND %s != ''
		GROUP BY %s, %s
		ORDER BY %s, count DESC
	`, groupBy, secondaryGroup, groupBy, groupBy, secondaryGroup, secondaryGroup, groupBy, secondaryGroup, groupBy)

	rows, err := s.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CrossRow
	for rows.Next() {
		var r CrossRow
		if err := rows.Scan(&r.Primary, &r.Secondary, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ageFilterFields is get_age_stats' allowed filter_field set. It differs
// from crossBreakdownFields by carrying assigned_manager_name instead of
// assigned_manager_level.
var ageFilterFields = map[string]bool{
	"assigned_office": true, "assigned_manager_name": true, "client_segment": true,
	"request_type": true, "sentiment": true, "language": true, "gender": true,
	"city": true, "country": true, "region": true,
}

// AgeStats is what get_age_stats returns: average/min/max client age
// computed from date_of_birth, optionally scoped by one filter.
type AgeStats struct {
	AvgAge *float64 `json:"avg_age"`
	MinAge *int     `json:"min_age"`
	MaxAge *int     `json:"max_age"`
	Count  int      `json:"count"`
}

func (s *Store) AgeStats(ctx context.Context, filterField, filterValue string) (AgeStats, error) {
	var stats AgeStats
	where := `WHERE date_of_birth IS NOT NULL AND date_of_birth != ''`
	args := []any{}

	if filterField != "" && filterValue != "" {
		if !ageFilterFields[filterField] {
			return stats, fmt.Errorf("filter_field must be one of the allowed ticket fields, got %q", filterField)
		}
		args = append(args, filterValue)
		where += fmt.Sprintf(" AND LOWER(%s) = LOWER($%d)", filterField, len(args))
	}

	query := fmt.Sprintf(`
		SELECT
			ROUND(AVG(DATE_PART('year', AGE(NOW(), date_of_birth::date)))::numeric, 1)::float8,
			MIN(DATE_PART('year', AGE(NOW(), date_of_birth::date)))::int,
			MAX(DATE_PART('year', AGE(NOW(), date_of_birth::date)))::int,
			COUNT(*)
		FROM tickets_final_enriched
		%s
		AND date_of_birth::date > '1900-01-01' AND date_of_birth::date < NOW()::date
	`, where)

	if err := s.Pool.QueryRow(ctx, query, args...).Scan(&stats.AvgAge, &stats.MinAge, &stats.MaxAge, &stats.Count); err != nil {
		return stats, err
	}
	return stats, nil
}

// PriorityCount is one row of get_priority_breakdown.
type PriorityCount struct {
	Priority int `json:"priority"`
	Count    int `json:"count"`
}

func (s *Store) PriorityBreakdown(ctx context.Context) ([]PriorityCount, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT priority, COUNT(*) FROM tickets_final_enriched
		WHERE priority IS NOT NULL
		GROUP BY priority ORDER BY priority
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PriorityCount
	for rows.Next() {
		var p PriorityCount
		if err := rows.Scan(&p.Priority, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AssignedTicketCount is one row of get_manager_workloads: a manager's
// assigned ticket count, derived from tickets_final_enriched rather than
// the managers table's in-memory workload column.
type AssignedTicketCount struct {
	ManagerName  string `json:"assigned_manager_name"`
	ManagerLevel string `json:"assigned_manager_level"`
	Office       string `json:"assigned_office"`
	TicketCount  int    `json:"ticket_count"`
}

func (s *Store) AssignedTicketCounts(ctx context.Context) ([]AssignedTicketCount, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT assigned_manager_name, assigned_manager_level, assigned_office, COUNT(*)
		FROM tickets_final_enriched
		WHERE assigned_manager_name IS NOT NULL AND assigned_manager_name != ''
		GROUP BY assigned_manager_name, assigned_manager_level, assigned_office
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssignedTicketCount
	for rows.Next() {
		var a AssignedTicketCount
		if err := rows.Scan(&a.ManagerName, &a.ManagerLevel, &a.Office, &a.TicketCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func fillCounts(ctx context.Context, pool *pgxpool.Pool, query string, into map[string]int) error {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// ManagerWorkload is one row of the managers table's workload listing
// the analytics endpoint returns.
type ManagerWorkload struct {
	ManagerID string `json:"manager_id"`
	FullName  string `json:"full_name"`
	Office    string `json:"office"`
	Workload  int    `json:"workload"`
}

func (s *Store) ManagerWorkloads(ctx context.Context) ([]ManagerWorkload, error) {
	rows, err := s.Pool.Query(ctx, `SELECT manager_id, full_name, office, active_tickets_count FROM managers ORDER BY active_tickets_count DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ManagerWorkload
	for rows.Next() {
		var w ManagerWorkload
		if err := rows.Scan(&w.ManagerID, &w.FullName, &w.Office, &w.Workload); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
