package auction

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// exportHeader is the fixed column layout of the results file.
var exportHeader = []string{"team", "name", "nickname", "main_pos", "sub_pos", "mosts", "price"}

// ResultRow is one sold candidate in the export.
type ResultRow struct {
	Team    string
	Name    string
	Nick    string
	MainPos string
	SubPos  string
	Mosts   string
	Price   int
}

// ExportResults returns one row per sold candidate, grouped by team in
// bidding order (registration order before the auction starts).
func (s *Service) ExportResults() []ResultRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := s.state.CaptainOrder
	if len(order) == 0 {
		order = make([]string, 0, len(s.state.Teams))
		for nick := range s.state.Teams {
			order = append(order, nick)
		}
		sort.Strings(order)
	}

	var rows []ResultRow
	for _, captainNick := range order {
		team, ok := s.state.Teams[captainNick]
		if !ok {
			continue
		}
		teamName := ""
		if c, ok := s.state.Captains[captainNick]; ok {
			teamName = c.TeamName
		}
		for _, memberNick := range team.Members {
			row := ResultRow{Team: teamName, Nick: memberNick}
			if p, ok := s.state.Candidates[memberNick]; ok {
				row.Name = p.Name
				row.MainPos = p.MainPos
				row.SubPos = p.SubPos
				row.Mosts = strings.Join(p.Mosts, ", ")
				if p.WonPrice != nil {
					row.Price = *p.WonPrice
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteCSV writes the results snapshot with the fixed header.
func (s *Service) WriteCSV(w io.Writer) error {
	rows := s.ExportResults()

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		record := []string{r.Team, r.Name, r.Nick, r.MainPos, r.SubPos, r.Mosts, strconv.Itoa(r.Price)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row for %s: %w", r.Nick, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
