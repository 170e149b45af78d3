package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
	"github.com/spf13/cobra"
)

var (
	calendarFile   string
	calendarDate   string
	calendarOffset int
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Query the business-day calendar",
	Long: `Answer business-day questions against the YAML holiday calendar,
without touching the database.

Prints whether the date is a business day, its nearest prior business day
and, when --offset is given, the date that many business days away.

Examples:
  server calendar --file holidays.yaml
  server calendar --file holidays.yaml --date 2024-01-01 --offset -2`,
	RunE: runCalendar,
}

func init() {
	calendarCmd.Flags().StringVar(&calendarFile, "file", "", "holiday calendar YAML (default: $HOLIDAYS_FILE)")
	calendarCmd.Flags().StringVar(&calendarDate, "date", "", "date to inspect, YYYY-MM-DD (default: today)")
	calendarCmd.Flags().IntVar(&calendarOffset, "offset", 0, "business days to add (negative moves backward)")
}

type calendarReport struct {
	Date             string `json:"date"`
	IsBusinessDay    bool   `json:"is_business_day"`
	PriorBusinessDay string `json:"prior_business_day"`
	OffsetResult     string `json:"offset_result,omitempty"`
}

func runCalendar(cmd *cobra.Command, args []string) error {
	path := calendarFile
	if path == "" {
		path = os.Getenv("HOLIDAYS_FILE")
	}

	holidays := calendar.HolidaySet{}
	if path != "" {
		var err error
		holidays, err = calendar.LoadHolidaysFile(path)
		if err != nil {
			return err
		}
	}

	day := time.Now().UTC()
	if calendarDate != "" {
		var err error
		day, err = time.Parse("2006-01-02", calendarDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	const iso = "2006-01-02"
	report := calendarReport{
		Date:             day.Format(iso),
		IsBusinessDay:    calendar.IsBusinessDay(day, holidays),
		PriorBusinessDay: calendar.PriorBusinessDay(day, holidays).Format(iso),
	}
	if calendarOffset != 0 {
		report.OffsetResult = calendar.AddBusinessDays(day, calendarOffset, holidays).Format(iso)
	}
	return printJSON(cmd, report)
}
