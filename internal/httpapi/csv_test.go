package httpapi

import (
	"bytes"
	"mime/multipart"
	"testing"
)

func TestParseTicketsCSV_SynthesizesMissingGUID(t *testing.T) {
	content := "customer_guid,description,segment\n,Need help with my account,Mass\n"
	fh := makeMultipartFile(t, "tickets", "tickets.csv", content)
	tickets, errs := parseTicketsCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(tickets) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(tickets))
	}
	if tickets[0].CustomerGUID == "" {
		t.Fatalf("expected a synthesized customer_guid, got empty string")
	}
}

func TestParseTicketsCSV_KeepsProvidedGUID(t *testing.T) {
	content := "customer_guid,description,segment\nc-123,Need help with my account,VIP\n"
	fh := makeMultipartFile(t, "tickets", "tickets.csv", content)
	tickets, errs := parseTicketsCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(tickets) != 1 || tickets[0].CustomerGUID != "c-123" {
		t.Fatalf("expected customer_guid c-123, got %+v", tickets)
	}
}

func TestParseTicketsCSV_MissingDescriptionColumn(t *testing.T) {
	content := "customer_guid,segment\nc-123,Mass\n"
	fh := makeMultipartFile(t, "tickets", "tickets.csv", content)
	tickets, errs := parseTicketsCSV(fh)
	if len(tickets) != 0 {
		t.Fatalf("expected no tickets without a description column, got %d", len(tickets))
	}
	if len(errs) == 0 || errs[0] != "missing description column" {
		t.Fatalf("expected missing-description error, got %v", errs)
	}
}

func TestParseTicketsCSV_SkipsEmptyDescriptionRows(t *testing.T) {
	content := "customer_guid,description,segment\nc-1,,Mass\nc-2,Need help,Mass\n"
	fh := makeMultipartFile(t, "tickets", "tickets.csv", content)
	tickets, errs := parseTicketsCSV(fh)
	if len(tickets) != 1 || tickets[0].CustomerGUID != "c-2" {
		t.Fatalf("expected only the non-empty row, got %+v", tickets)
	}
	if len(errs) != 1 {
		t.Fatalf("expected one row error, got %v", errs)
	}
}

func makeMultipartFile(t *testing.T, fieldName, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(buf.Len()))
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	files := form.File[fieldName]
	if len(files) == 0 {
		t.Fatalf("no file headers found")
	}
	return files[0]
}
