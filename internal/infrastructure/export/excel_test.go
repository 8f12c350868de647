package export

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"breathing_club_bot/internal/domain"
)

func TestSubscribersXLSX(t *testing.T) {
	rows := []domain.SubscriberRow{
		{
			UserID:     42,
			Username:   "breather",
			FirstName:  "Анна",
			ExpiresAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			TariffDays: 30,
			IsActive:   true,
			TotalPaid:  199000,
		},
		{UserID: 7, FirstName: "Олег", TariffDays: 90, TotalPaid: 477050},
	}

	buf, err := SubscribersXLSX(rows)
	if err != nil {
		t.Fatalf("SubscribersXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("файл не открывается: %v", err)
	}
	defer f.Close()

	got, err := f.GetRows(subscribersSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ожидалось 3 строки (заголовок + 2), получено %d", len(got))
	}

	checks := map[string]string{
		"A2": "42",
		"B2": "@breather",
		"E2": "01.05.2024 10:00",
		"G2": "да",
		"H2": "1990",
		"G3": "нет",
		"H3": "4770.50",
	}
	for cell, want := range checks {
		v, err := f.GetCellValue(subscribersSheet, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) error = %v", cell, err)
		}
		if v != want {
			t.Errorf("%s = %q, want %q", cell, v, want)
		}
	}
}
