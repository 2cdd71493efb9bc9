package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cardwatch/agreements-tracker/internal/entity"
	"github.com/cardwatch/agreements-tracker/internal/repository"
)

type staticRepo struct {
	recs []*entity.AgreementRecord
}

func (s *staticRepo) Save(context.Context, *entity.AgreementRecord) error { return nil }

func (s *staticRepo) List(_ context.Context, f repository.Filter) ([]*entity.AgreementRecord, error) {
	var out []*entity.AgreementRecord
	for _, r := range s.recs {
		if f.Quarter != "" && r.Quarter != f.Quarter {
			continue
		}
		if f.Year != 0 && r.Year != f.Year {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func TestExportAgreementsXLSX(t *testing.T) {
	when := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	repo := &staticRepo{recs: []*entity.AgreementRecord{
		{
			Quarter:        "Q1",
			Year:           2025,
			SourceFilename: "a.pdf",
			Issuer:         "Bank A",
			CardName:       "Platinum Rewards",
			AnnualFee:      "95",
			ExtractionDate: when,
		},
		{
			Quarter:        "Q1",
			Year:           2025,
			SourceFilename: "b.pdf",
			Issuer:         "Credit Union B",
			CardName:       "Everyday Cash",
			AnnualFee:      "Not disclosed",
			ExtractionDate: when,
		},
	}}

	svc := NewService(repo, nil)
	data, err := svc.ExportAgreementsXLSX(context.Background(), repository.Filter{})
	if err != nil {
		t.Fatalf("ExportAgreementsXLSX failed: %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("produced workbook does not open: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows("Agreements")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2 records", len(rows))
	}
	for i, h := range Headers {
		if i >= len(rows[0]) || rows[0][i] != h {
			t.Fatalf("header column %d = %q, want %q", i, rows[0][i], h)
		}
	}
	if rows[1][3] != "Bank A" || rows[2][3] != "Credit Union B" {
		t.Errorf("issuer column wrong: %q, %q", rows[1][3], rows[2][3])
	}
	if rows[1][22] != "2025-03-14 10:30:00" {
		t.Errorf("extraction date = %q", rows[1][22])
	}
	if got, _ := wb.GetSheetIndex("Sheet1"); got != -1 {
		t.Error("default sheet left in workbook")
	}
}

func TestExportAgreementsXLSXEmpty(t *testing.T) {
	svc := NewService(&staticRepo{}, nil)
	data, err := svc.ExportAgreementsXLSX(context.Background(), repository.Filter{Quarter: "Q4", Year: 1999})
	if err != nil {
		t.Fatalf("ExportAgreementsXLSX failed: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("produced workbook does not open: %v", err)
	}
	defer wb.Close()
	rows, err := wb.GetRows("Agreements")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("empty export should still carry the header row, got %d rows", len(rows))
	}
}
