package lookup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/furnbridge/orderdesk/internal/fetcher"
)

// tourRow is one Lieferlogik schedule row.
// Workbook columns: Tour | Region | Vorlaufwochen | Kunde, first row is the
// header. The Kunde column optionally restricts a row to one client; rows
// with an empty Kunde are the tour default.
type tourRow struct {
	Tour      string
	Region    string
	LeadWeeks int
	Client    string
}

const defaultLeadWeeks = 2

var (
	kwTokenRe    = regexp.MustCompile(`(?i)\bKW\s*\.?\s*(\d{1,2})\b`)
	orderDateFmt = []string{"2006-01-02", "02.01.2006", "2.1.2006"}
)

func tourKey(tour string) string {
	return stripLeadingZeros(strings.ToUpper(strings.TrimSpace(tour)))
}

func (t *Tables) ensureTours() {
	t.tourOnce.Do(func() {
		t.byTour = make(map[string][]*tourRow)
		if t.paths.Lieferlogik == "" {
			return
		}
		rows, err := fetcher.ReadXLSX(t.paths.Lieferlogik, fetcher.XLSXOptions{SkipRows: 1})
		if err != nil {
			logLoadFailure("lieferlogik", t.paths.Lieferlogik, err)
			return
		}
		for _, cells := range rows {
			row := tourRow{
				Tour:      cellAt(cells, 0),
				Region:    cellAt(cells, 1),
				LeadWeeks: defaultLeadWeeks,
				Client:    cellAt(cells, 3),
			}
			if row.Tour == "" {
				continue
			}
			if lead, err := strconv.Atoi(cellAt(cells, 2)); err == nil && lead > 0 {
				row.LeadWeeks = lead
			}
			t.tours = append(t.tours, row)
		}
		for i := range t.tours {
			key := tourKey(t.tours[i].Tour)
			t.byTour[key] = append(t.byTour[key], &t.tours[i])
		}
	})
}

// IsTourValid reports whether the tour appears in the Lieferlogik schedule.
func (t *Tables) IsTourValid(tour string) bool {
	t.ensureTours()
	return len(t.byTour[tourKey(tour)]) > 0
}

// scheduleRow picks the Lieferlogik row for a tour, preferring a row whose
// Kunde column matches the client name.
func (t *Tables) scheduleRow(tour, clientName string) *tourRow {
	t.ensureTours()
	rows := t.byTour[tourKey(tour)]
	if len(rows) == 0 {
		return nil
	}
	clientTokens := tokenSet(clientName)
	var fallback *tourRow
	for _, row := range rows {
		if row.Client == "" {
			if fallback == nil {
				fallback = row
			}
			continue
		}
		if len(clientTokens) > 0 && overlapCount(clientTokens, row.Client) > 0 {
			return row
		}
	}
	if fallback != nil {
		return fallback
	}
	return rows[0]
}

// Calculate computes the delivery calendar week: the order-date week plus the
// tour's lead time, bumped forward to the requested week when the wunschtermin
// asks for a feasible later week. The result is formatted "KW <week>/<year>";
// an unknown tour or unparsable order date yields "".
func (t *Tables) Calculate(bestelldatum, tour, wunschtermin, clientName string) string {
	row := t.scheduleRow(tour, clientName)
	if row == nil {
		return ""
	}
	orderDate, ok := parseOrderDate(bestelldatum)
	if !ok {
		return ""
	}

	earliest := orderDate.AddDate(0, 0, row.LeadWeeks*7)
	year, week := earliest.ISOWeek()

	if reqWeek, ok := requestedWeek(wunschtermin); ok {
		reqYear := year
		// A requested week far below the computed one means the order rolls
		// into the next year.
		if reqWeek < week && week-reqWeek > 26 {
			reqYear = year + 1
		}
		if reqYear > year || (reqYear == year && reqWeek >= week) {
			return fmt.Sprintf("KW %d/%d", reqWeek, reqYear)
		}
	}
	return fmt.Sprintf("KW %d/%d", week, year)
}

func parseOrderDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range orderDateFmt {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// requestedWeek reads a "KW nn" token or a full date out of the wunschtermin.
func requestedWeek(wunschtermin string) (int, bool) {
	if m := kwTokenRe.FindStringSubmatch(wunschtermin); m != nil {
		week, err := strconv.Atoi(m[1])
		if err == nil && week >= 1 && week <= 53 {
			return week, true
		}
	}
	if ts, ok := parseOrderDate(wunschtermin); ok {
		_, week := ts.ISOWeek()
		return week, true
	}
	return 0, false
}
