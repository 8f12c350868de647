package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"breathing_club_bot/internal/domain"
)

const (
	subscribersSheet = "Подписчики"
	dateLayout       = "02.01.2006 15:04"
)

var subscriberHeader = []interface{}{
	"ID", "Username", "Имя", "Фамилия", "Подписка до", "Тариф (дней)", "Активна", "Оплачено, ₽",
}

// SubscribersXLSX формирует xlsx-файл со списком подписчиков
func SubscribersXLSX(rows []domain.SubscriberRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", subscribersSheet)

	if err := f.SetSheetRow(subscribersSheet, "A1", &subscriberHeader); err != nil {
		return nil, fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания стиля: %w", err)
	}
	if err := f.SetCellStyle(subscribersSheet, "A1", "H1", bold); err != nil {
		return nil, fmt.Errorf("ошибка применения стиля: %w", err)
	}
	if err := f.SetColWidth(subscribersSheet, "A", "H", 18); err != nil {
		return nil, fmt.Errorf("ошибка ширины колонок: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}

		active := "нет"
		if row.IsActive {
			active = "да"
		}
		username := ""
		if row.Username != "" {
			username = "@" + row.Username
		}

		values := []interface{}{
			row.UserID,
			username,
			row.FirstName,
			row.LastName,
			row.ExpiresAt.Format(dateLayout),
			row.TariffDays,
			active,
			domain.FormatRubles(row.TotalPaid),
		}
		if err := f.SetSheetRow(subscribersSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("ошибка записи строки %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения xlsx: %w", err)
	}
	return buf, nil
}
