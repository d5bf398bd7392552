package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/database"
	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	apperrors "github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"
)

// Reads a sheet of channel numbers (column A) and optional capacities
// (column B) and adds every channel that does not exist yet.
func main() {
	path := flag.String("file", "channels.xlsx", "spreadsheet with one channel per row")
	flag.Parse()

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal(err)
	}

	f, err := excelize.OpenFile(*path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		log.Fatal("no sheets found")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		log.Fatal(err)
	}

	allocator := services.NewAllocator(db, nil)
	ctx := context.Background()
	imported, skipped := 0, 0

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		number := strings.TrimSpace(utils.NormalizeArabicNumbers(row[0]))
		if number == "" || (i == 0 && !isDigits(number)) { // header
			continue
		}
		capacity := cfg.DefaultChannelCapacity
		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			c, err := strconv.ParseInt(utils.StripThousands(utils.NormalizeArabicNumbers(strings.TrimSpace(row[1]))), 10, 64)
			if err != nil {
				fmt.Printf("Row %d: invalid capacity %q\n", i+1, row[1])
				skipped++
				continue
			}
			capacity = c
		}

		if _, err := allocator.AddChannel(ctx, number, capacity); err != nil {
			if apperrors.Is(err, apperrors.ErrCodeAlreadyExists) {
				skipped++
				continue
			}
			fmt.Printf("Row %d: %v\n", i+1, err)
			skipped++
			continue
		}
		imported++
	}

	fmt.Printf("Imported %d channels, skipped %d\n", imported, skipped)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
