package httpapi

import (
	"encoding/csv"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ticketfire/backend/internal/models"
)

// Three logical tables travel as three multipart fields in one upload:
// tickets, managers, offices. Column names are matched case-insensitively
// against a handful of aliases so both Russian and English headers work.

// columns maps lower-cased header names to their record positions. All
// alias lookups below are written pre-lowered.
type columns map[string]int

func readColumns(reader *csv.Reader) (columns, error) {
	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	cols := make(columns, len(headers))
	for i, h := range headers {
		h = strings.TrimPrefix(h, "\uFEFF")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols, nil
}

func (c columns) has(aliases ...string) bool {
	for _, name := range aliases {
		if _, ok := c[name]; ok {
			return true
		}
	}
	return false
}

// value returns the first non-empty cell among the aliased columns.
func (c columns) value(rec []string, aliases ...string) string {
	for _, name := range aliases {
		pos, ok := c[name]
		if !ok || pos >= len(rec) {
			continue
		}
		if v := strings.TrimSpace(rec[pos]); v != "" {
			return v
		}
	}
	return ""
}

func splitSkills(raw string) []string {
	raw = strings.ReplaceAll(raw, ";", ",")
	parts := strings.Split(raw, ",")
	seen := map[string]struct{}{}
	var out []string
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		switch p {
		case "RUS", "RUSSIAN":
			p = models.LanguageRU
		case "KAZ", "KAZAKH":
			p = models.LanguageKZ
		case "EN", "ENGLISH":
			p = models.LanguageENG
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func parseTicketsCSV(file *multipart.FileHeader) ([]models.Ticket, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	cols, err := readColumns(reader)
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	if !cols.has("description", "описание", "message", "текст") {
		return nil, []string{"missing description column"}
	}

	var errs []string
	var out []models.Ticket
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}

		t := models.Ticket{
			CustomerGUID: cols.value(rec, "customer_guid", "guid клиента", "guid"),
			Gender:       cols.value(rec, "gender", "пол"),
			DateOfBirth:  cols.value(rec, "date_of_birth", "дата рождения"),
			Segment:      cols.value(rec, "segment", "client_segment", "сегмент клиента"),
			Description:  cols.value(rec, "description", "описание", "message", "текст"),
			Attachments:  cols.value(rec, "attachments", "вложения"),
			Country:      cols.value(rec, "country", "страна"),
			Region:       cols.value(rec, "region", "регион"),
			City:         cols.value(rec, "city", "город"),
			Street:       cols.value(rec, "street", "улица"),
			Building:     cols.value(rec, "building", "building_number", "дом"),
		}
		if t.Description == "" {
			errs = append(errs, "ticket row missing description")
			continue
		}
		switch {
		case strings.EqualFold(t.Segment, models.SegmentVIP):
			t.Segment = models.SegmentVIP
		case strings.EqualFold(t.Segment, models.SegmentPriority):
			t.Segment = models.SegmentPriority
		default:
			t.Segment = models.SegmentMass
		}
		if t.CustomerGUID == "" {
			t.CustomerGUID = uuid.NewString()
		}
		out = append(out, t)
	}
	return out, errs
}

func parseManagersCSV(file *multipart.FileHeader) ([]models.Manager, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	cols, err := readColumns(reader)
	if err != nil {
		return nil, []string{"failed to read header"}
	}

	var errs []string
	var out []models.Manager
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}

		workload, _ := strconv.Atoi(cols.value(rec, "workload", "current_load", "нагрузка"))

		m := models.Manager{
			ManagerID: cols.value(rec, "manager_id", "id"),
			FullName:  cols.value(rec, "full_name", "name", "фио"),
			Position:  cols.value(rec, "position", "role", "должность"),
			Office:    cols.value(rec, "office", "business_unit", "офис"),
			Skills:    splitSkills(cols.value(rec, "skills", "навыки")),
			Workload:  workload,
		}
		if m.FullName == "" || m.Office == "" {
			errs = append(errs, "manager row missing full_name/office")
			continue
		}
		out = append(out, m)
	}
	return out, errs
}

func parseOfficesCSV(file *multipart.FileHeader) ([]models.Office, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	cols, err := readColumns(reader)
	if err != nil {
		return nil, []string{"failed to read header"}
	}

	var errs []string
	var out []models.Office
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}

		o := models.Office{
			Name:    cols.value(rec, "name", "office", "офис"),
			Address: cols.value(rec, "address", "адрес"),
		}
		if latStr := cols.value(rec, "lat", "latitude", "широта"); latStr != "" {
			if v, err := strconv.ParseFloat(latStr, 64); err == nil {
				o.Latitude = &v
			}
		}
		if lonStr := cols.value(rec, "lon", "longitude", "долгота"); lonStr != "" {
			if v, err := strconv.ParseFloat(lonStr, 64); err == nil {
				o.Longitude = &v
			}
		}
		if o.Name == "" {
			errs = append(errs, "office row missing name")
			continue
		}
		out = append(out, o)
	}
	return out, errs
}
