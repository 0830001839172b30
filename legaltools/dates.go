package legaltools

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/legalmesh/core"
)

// DateLayout is the accepted and produced date format.
const DateLayout = "2006-01-02"

// MaxDayCount bounds the magnitude of a day count, about 10000 years.
const MaxDayCount = 3_660_000

// AddDays adds dayCount calendar days to startDate. dayCount is an integer
// string and may be negative or zero.
func AddDays(startDate, dayCount string) core.Result {
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return errorResult("error_message", fmt.Sprintf("invalid start date %q: expected YYYY-MM-DD", startDate))
	}

	days, err := strconv.Atoi(strings.TrimSpace(dayCount))
	if err != nil {
		return errorResult("error_message", fmt.Sprintf("invalid day count %q: expected an integer", dayCount))
	}

	if days > MaxDayCount || days < -MaxDayCount {
		return errorResult("error_message", fmt.Sprintf("day count %d out of range: at most %d days either way", days, MaxDayCount))
	}

	result := start.AddDate(0, 0, days)
	if y := result.Year(); y < 1 || y > 9999 {
		return errorResult("error_message", fmt.Sprintf("result date year %d is outside 0001-9999", y))
	}

	return core.StructuredResult(map[string]any{
		"status":      "success",
		"result_date": result.Format(DateLayout),
	})
}

func errorResult(key, msg string) core.Result {
	return core.StructuredResult(map[string]any{"status": "error", key: msg})
}
