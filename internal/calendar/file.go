package calendar

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Holiday is one named calendar entry from the holidays YAML file.
type Holiday struct {
	Date time.Time
	Name string
}

type holidaysFile struct {
	Holidays []holidayEntry `yaml:"holidays"`
}

type holidayEntry struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

// LoadHolidays reads a YAML holiday calendar:
//
//	holidays:
//	  - date: 2024-01-01
//	    name: Confraternização Universal
func LoadHolidays(path string) ([]Holiday, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holidays file: %w", err)
	}

	var parsed holidaysFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse holidays file %q: %w", path, err)
	}

	holidays := make([]Holiday, 0, len(parsed.Holidays))
	for _, entry := range parsed.Holidays {
		day, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", entry.Date, err)
		}
		holidays = append(holidays, Holiday{Date: day, Name: entry.Name})
	}
	return holidays, nil
}

// LoadHolidaysFile reads the YAML calendar as a lookup set, for callers that
// run without a database. The serve path loads the holidays table instead.
func LoadHolidaysFile(path string) (HolidaySet, error) {
	holidays, err := LoadHolidays(path)
	if err != nil {
		return nil, err
	}
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		set[dayKey(h.Date)] = struct{}{}
	}
	return set, nil
}
