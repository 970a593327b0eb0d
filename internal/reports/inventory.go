package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	devices "smarthome-cloud/internal/devices/domain"
)

// BuildDeviceInventoryCSV renders the device inventory as CSV.
func BuildDeviceInventoryCSV(list []devices.Device) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"device_id", "type", "status", "owner", "created_at"}); err != nil {
		return nil, err
	}
	for _, device := range list {
		record := []string{
			device.DeviceID,
			device.Type,
			device.Status,
			device.UserID,
			device.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDeviceInventoryXLSX renders the device inventory as XLSX.
func BuildDeviceInventoryXLSX(list []devices.Device) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "devices"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Device ID")
	_ = f.SetCellValue(sheet, "B1", "Type")
	_ = f.SetCellValue(sheet, "C1", "Status")
	_ = f.SetCellValue(sheet, "D1", "Owner")
	_ = f.SetCellValue(sheet, "E1", "Created")
	for i, device := range list {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), device.DeviceID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), device.Type)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), device.Status)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), device.UserID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), device.CreatedAt.Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDeviceInventoryPDF renders the device inventory as a PDF table.
func BuildDeviceInventoryPDF(list []devices.Device) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Device Inventory")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Devices: %d", len(list)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(60, 6, "Device ID", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Owner", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, device := range list {
		pdf.CellFormat(60, 6, device.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, device.Type, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, device.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, device.UserID, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
