package report

import (
	"math"
	"strconv"
)

// Egg Inc magnitude suffixes, one per power of 1000 starting at 10^3.
var magnitudes = []string{
	"K", "M", "B", "T", "q", "Q", "s", "S", "o", "N", "d", "U", "D", "Td", "qd",
	"Qd", "sd", "Sd", "Od", "Nd", "V", "uV", "dV", "tV", "qV", "QV", "sV", "SV", "OV",
	"NV", "tT",
}

// FmtEggs formats an egg amount with a magnitude suffix, e.g. 5.670q.
func FmtEggs(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case x < 0:
		return "-" + FmtEggs(-x)
	case math.IsInf(x, 1):
		return "infinity"
	case x < 1000:
		return strconv.FormatFloat(x, 'f', 0, 64)
	}

	// Nudge exact powers of ten that Log10 lands just under.
	exp := int(math.Floor(math.Log10(x) + 1e-9))
	group := min(exp/3, len(magnitudes))
	principal := x / math.Pow10(group*3)
	// Truncate so 9.9999q never rounds up to 10.000q.
	principal = math.Floor(principal*1000+1e-6) / 1000
	return strconv.FormatFloat(principal, 'f', 3, 64) + magnitudes[group-1]
}
