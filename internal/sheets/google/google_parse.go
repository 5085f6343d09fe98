package google

import (
	"fmt"
	"strings"
	"time"

	ports "fintrack/internal/sheets"
)

// parseRows converts a values matrix (as returned by Sheets API) back into
// export rows. The first row must be the header; columns are located by name
// so reordered sheets still parse.
func parseRows(values [][]interface{}) ([]ports.Row, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	cols := make(map[string]int, len(ports.Header))
	var missing []string
	for _, h := range ports.Header {
		idx := indexOf(headers, h)
		if idx == -1 {
			missing = append(missing, h)
		}
		cols[h] = idx
	}
	if cols["Transaction"] == -1 {
		return nil, fmt.Errorf("unexpected ledger header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	out := make([]ports.Row, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		get := func(name string) string { return safeGet(row, cols[name]) }
		if get("Transaction") == "" {
			continue
		}
		out = append(out, ports.Row{
			RecordedAt:    parseTime(get("Recorded At")),
			Action:        get("Action"),
			TransactionID: get("Transaction"),
			OwnerID:       get("Owner"),
			ParentID:      get("Parent"),
			Kind:          get("Kind"),
			Amount:        strings.ReplaceAll(get("Amount"), ",", "."),
			Currency:      get("Currency"),
			CategoryID:    get("Category"),
			Description:   get("Description"),
			OccurredAt:    parseTime(get("Occurred At")),
		})
	}
	return out, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
