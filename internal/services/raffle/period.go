package raffle

// monthsPerPeriod is the length of a drawing period. Periods start at
// months 0, 4 and 8 (January, May, September).
const monthsPerPeriod = 4

type periodPosition struct {
	Index      int
	StartMonth int
	IsFirst    bool
	IsLast     bool
}

func locate(month int) periodPosition {
	index := month / monthsPerPeriod
	start := index * monthsPerPeriod
	return periodPosition{
		Index:      index,
		StartMonth: start,
		IsFirst:    month == start,
		IsLast:     month == start+monthsPerPeriod-1,
	}
}

// remaining returns eligible minus drawn, keeping eligible's order.
func remaining(eligible, drawn []string) []string {
	seen := make(map[string]struct{}, len(drawn))
	for _, id := range drawn {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(eligible))
	for _, id := range eligible {
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}
