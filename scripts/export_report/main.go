package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/database"
	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"
)

// Writes the daily report for -day, plus a per-day totals sheet covering
// the -days before it, to an .xlsx file.
func main() {
	dayFlag := flag.String("day", time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02"), "report day (UTC)")
	days := flag.Int("days", 30, "days of history in the Totals sheet")
	out := flag.String("out", "", "output file (default report-<day>.xlsx)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	day, err := time.Parse("2006-01-02", *dayFlag)
	if err != nil {
		log.Fatal("invalid -day:", err)
	}
	if *out == "" {
		*out = fmt.Sprintf("report-%s.xlsx", day.Format("2006-01-02"))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}

	ctx := context.Background()
	reports := services.NewReportService(db, services.NewAllocator(db, nil))
	report, err := reports.Daily(ctx, day)
	if err != nil {
		log.Fatal(err)
	}

	file, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	if err := services.WriteDailyReportXLSX(file, report); err != nil {
		log.Fatal(err)
	}
	if err := file.Close(); err != nil {
		log.Fatal(err)
	}

	totals, err := reports.TotalsByDay(ctx, day.AddDate(0, 0, -*days), day.AddDate(0, 0, 1))
	if err != nil {
		log.Fatal(err)
	}

	f, err := excelize.OpenFile(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	const sheet = "Totals"
	if _, err := f.NewSheet(sheet); err != nil {
		log.Fatal(err)
	}
	header := []interface{}{"Day", "Kind", "Count", "Amount"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		log.Fatal(err)
	}
	for i, t := range totals {
		row := []interface{}{t.Day, t.Kind, t.Count, t.Amount}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			log.Fatal(err)
		}
	}
	if err := f.Save(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Wrote %s (%d day totals)\n", *out, len(totals))
}
