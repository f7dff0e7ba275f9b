package external

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wpre/internal/types"
)

// htmlTable reads the first table that has a header row. Header cells are
// matched case-insensitively; each data row becomes a map keyed by header.
func htmlTable(body []byte) ([]map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var (
		headers []string
		rows    []map[string]string
	)
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		headers = nil
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			if th := row.Find("th"); th.Length() > 0 && headers == nil {
				th.Each(func(_ int, cell *goquery.Selection) {
					headers = append(headers, strings.ToLower(strings.TrimSpace(cell.Text())))
				})
				return
			}
			cells := row.Find("td")
			if headers == nil || cells.Length() == 0 {
				return
			}
			rec := make(map[string]string, len(headers))
			cells.Each(func(i int, cell *goquery.Selection) {
				if i < len(headers) {
					rec[headers[i]] = strings.TrimSpace(cell.Text())
				}
			})
			rows = append(rows, rec)
		})
		return headers == nil
	})

	if headers == nil {
		return nil, fmt.Errorf("no table with a header row found")
	}
	return rows, nil
}

// parseCellFloat accepts "." or "," as the decimal separator. Blank cells
// become NaN.
func parseCellFloat(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || s == "-" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseRainHTML(body []byte) ([]types.RainSample, error) {
	rows, err := htmlTable(body)
	if err != nil {
		return nil, err
	}

	samples := make([]types.RainSample, 0, len(rows))
	for i, r := range rows {
		ts, err := parseTime(r["time"])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		prob, err := parseCellFloat(r["probability"])
		if err != nil {
			return nil, fmt.Errorf("row %d probability: %w", i, err)
		}
		acc, err := parseCellFloat(r["accumulated"])
		if err != nil {
			return nil, fmt.Errorf("row %d accumulated: %w", i, err)
		}
		samples = append(samples, types.RainSample{
			Station:     r["station"],
			Time:        ts,
			Probability: prob,
			Accumulated: acc,
		})
	}
	return samples, nil
}

func parseSeriesHTML(body []byte) ([]types.SeriesPoint, error) {
	rows, err := htmlTable(body)
	if err != nil {
		return nil, err
	}

	points := make([]types.SeriesPoint, 0, len(rows))
	for i, r := range rows {
		ts, err := parseTime(r["time"])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		v, err := parseCellFloat(r["value"])
		if err != nil {
			return nil, fmt.Errorf("row %d value: %w", i, err)
		}
		if math.IsNaN(v) {
			continue
		}
		points = append(points, types.SeriesPoint{Time: ts, Value: v})
	}
	return points, nil
}
