package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// zones recognised in analyst queries, matched case-insensitively with an
// optional "zone" suffix.
var zoneNames = []string{"North", "South", "East", "West", "Central", "Coastal", "Rayalaseema"}

var zonePattern = regexp.MustCompile(`\b(north|south|east|west|central|coastal|rayalaseema)(?:\s+zone)?\b`)

// districtAlias maps a colloquial or legacy place name to the canonical
// district. The table is an ordered slice, not a map, because the first
// matching alias wins and that priority must be stable.
type districtAlias struct {
	alias    string
	district string
}

var districtAliases = []districtAlias{
	{"vizag", "Visakhapatnam"},
	{"visakha", "Visakhapatnam"},
	{"waltair", "Visakhapatnam"},
	{"vijayawada", "NTR"},
	{"bezawada", "NTR"},
	{"machilipatnam", "Krishna"},
	{"gudivada", "Krishna"},
	{"amaravati", "Guntur"},
	{"tenali", "Guntur"},
	{"narasaraopet", "Palnadu"},
	{"chirala", "Bapatla"},
	{"ongole", "Prakasam"},
	{"markapur", "Prakasam"},
	{"kavali", "Nellore"},
	{"gudur", "Tirupati"},
	{"srikalahasti", "Tirupati"},
	{"tirumala", "Tirupati"},
	{"madanapalle", "Annamayya"},
	{"rayachoti", "Annamayya"},
	{"cuddapah", "YSR Kadapa"},
	{"kadapa", "YSR Kadapa"},
	{"proddatur", "YSR Kadapa"},
	{"nandyala", "Nandyal"},
	{"adoni", "Kurnool"},
	{"yemmiganur", "Kurnool"},
	{"anantapuramu", "Anantapur"},
	{"dharmavaram", "Anantapur"},
	{"hindupur", "Sri Sathya Sai"},
	{"puttaparthi", "Sri Sathya Sai"},
	{"rajahmundry", "East Godavari"},
	{"rajamahendravaram", "East Godavari"},
	{"amalapuram", "East Godavari"},
	{"bhimavaram", "West Godavari"},
	{"tadepalligudem", "West Godavari"},
	{"tanuku", "West Godavari"},
	{"palakollu", "West Godavari"},
	{"anakapalle", "Anakapalli"},
	{"paderu", "Alluri Sitharama Raju"},
	{"parvathipuram", "Parvathipuram Manyam"},
}

// canonicalDistricts is checked only after the alias table.
var canonicalDistricts = []string{
	"Srikakulam",
	"Vizianagaram",
	"Parvathipuram Manyam",
	"Visakhapatnam",
	"Anakapalli",
	"Alluri Sitharama Raju",
	"Kakinada",
	"East Godavari",
	"West Godavari",
	"Eluru",
	"NTR",
	"Krishna",
	"Guntur",
	"Palnadu",
	"Bapatla",
	"Prakasam",
	"Nellore",
	"Tirupati",
	"Chittoor",
	"Annamayya",
	"YSR Kadapa",
	"Nandyal",
	"Kurnool",
	"Anantapur",
	"Sri Sathya Sai",
}

var (
	riskPattern   = regexp.MustCompile(`\b(high|medium|low)\s*(?:risk)?`)
	amountPattern = regexp.MustCompile(`(?:above|over|more than|greater than|>)\s*(?:₹|rs\.?\s*)?(\d+(?:\.\d+)?)\s*(lakhs|lakh|crores|crore|cr|l|k)?\b`)
	limitPattern  = regexp.MustCompile(`top\s+(\d+)`)
	statusPattern = regexp.MustCompile(`\b(new|in review|confirmed|resolved|rejected)\b`)

	lastNDaysPattern = regexp.MustCompile(`last\s+(\d+)\s+days?`)
	todayPattern     = regexp.MustCompile(`\btoday\b`)
	fromToPattern    = regexp.MustCompile(`from\s+([a-z0-9,\- ]+?)\s+to\s+([a-z0-9,\- ]+)`)
	fuzzyDatePattern = regexp.MustCompile(`([a-z]+)\s+(\d{1,2})(?:,?\s*(\d{4}))?`)

	mvPattern = regexp.MustCompile(`\bmv\b`)
)

// signalKeywords maps message keywords to signal types in priority order.
var signalKeywords = []struct {
	keyword string
	signal  domain.SignalType
}{
	{"payment gap", domain.SignalRevenueGap},
	{"revenue gap", domain.SignalRevenueGap},
	{"challan delay", domain.SignalChallanDelay},
	{"challan", domain.SignalChallanDelay},
	{"delay", domain.SignalChallanDelay},
	{"exempt", domain.SignalExemptionRisk},
	{"market value", domain.SignalMarketValueRisk},
	{"mv", domain.SignalMarketValueRisk},
	{"prohibit", domain.SignalProhibitedLand},
	{"data integrity", domain.SignalDataIntegrity},
	{"holiday fee", domain.SignalHolidayFee},
	{"holiday", domain.SignalHolidayFee},
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var statusCanonical = map[string]string{
	"new":       domain.CaseStatusNew,
	"in review": domain.CaseStatusInReview,
	"confirmed": domain.CaseStatusConfirmed,
	"resolved":  domain.CaseStatusResolved,
	"rejected":  domain.CaseStatusRejected,
}

// extractParams pulls every recognisable filter out of a free-text message.
// Extractions are independent; one failing to match never blocks the others.
// now anchors the relative date windows ("today", "last 30 days").
func extractParams(message string, now time.Time) domain.ExtractedParams {
	m := strings.ToLower(message)
	var p domain.ExtractedParams

	if match := zonePattern.FindStringSubmatch(m); match != nil {
		for _, z := range zoneNames {
			if strings.EqualFold(z, match[1]) {
				p.Zone = z
				break
			}
		}
	}

	p.District = extractDistrict(m)

	if match := riskPattern.FindStringSubmatch(m); match != nil {
		p.RiskLevel = strings.ToUpper(match[1][:1]) + match[1][1:]
	}

	for _, kw := range signalKeywords {
		if kw.keyword == "mv" {
			if mvPattern.MatchString(m) {
				p.SignalType = kw.signal
				break
			}
			continue
		}
		if strings.Contains(m, kw.keyword) {
			p.SignalType = kw.signal
			break
		}
	}

	if match := amountPattern.FindStringSubmatch(m); match != nil {
		if value, err := strconv.ParseFloat(match[1], 64); err == nil {
			value *= unitMultiplier(match[2])
			p.MinGap = &value
		}
	}

	if match := limitPattern.FindStringSubmatch(m); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil && n > 0 {
			p.Limit = &n
		}
	}

	// Date windows in fixed order; a later match overwrites an earlier one.
	if match := lastNDaysPattern.FindStringSubmatch(m); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			from := now.AddDate(0, 0, -n)
			to := now
			p.DateFrom, p.DateTo = &from, &to
		}
	}
	if todayPattern.MatchString(m) {
		from, to := now, now
		p.DateFrom, p.DateTo = &from, &to
	}
	if match := fromToPattern.FindStringSubmatch(m); match != nil {
		from, fromOK := parseFuzzyDate(strings.TrimSpace(match[1]), now.Year())
		to, toOK := parseFuzzyDate(strings.TrimSpace(match[2]), now.Year())
		if fromOK && toOK {
			p.DateFrom, p.DateTo = &from, &to
		}
	}

	if strings.Contains(m, "breach") {
		breached := true
		p.SLABreached = &breached
	}

	if match := statusPattern.FindStringSubmatch(m); match != nil {
		p.CaseStatus = statusCanonical[match[1]]
	}

	return p
}

// extractDistrict resolves a district mention. The alias table takes priority
// over the canonical list; within each, first match wins.
func extractDistrict(m string) string {
	for _, a := range districtAliases {
		if strings.Contains(m, a.alias) {
			return a.district
		}
	}
	for _, d := range canonicalDistricts {
		if strings.Contains(m, strings.ToLower(d)) {
			return d
		}
	}
	return ""
}

func unitMultiplier(unit string) float64 {
	switch unit {
	case "l", "lakh", "lakhs":
		return 100000
	case "cr", "crore", "crores":
		return 10000000
	case "k":
		return 1000
	default:
		return 1
	}
}

// parseFuzzyDate accepts ISO "YYYY-MM-DD" or "Month Day[, Year]" with the
// year defaulting to the current one.
func parseFuzzyDate(s string, currentYear int) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}

	match := fuzzyDatePattern.FindStringSubmatch(s)
	if match == nil {
		return time.Time{}, false
	}
	month, ok := monthNames[match[1]]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(match[2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year := currentYear
	if match[3] != "" {
		if y, err := strconv.Atoi(match[3]); err == nil {
			year = y
		}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}
