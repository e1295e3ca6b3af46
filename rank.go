package main

import "sort"

// SortKey orders records by one field.
type SortKey struct {
	Field Field
	Desc  bool
}

// Policy is one screen: a predicate, an ordering applied in priority order,
// and a result limit.
type Policy struct {
	Name      string
	Predicate func(InstrumentRecord) bool
	Ordering  []SortKey
	Limit     int
}

const defaultTopN = 5

// TradingPolicy screens oversold, liquid names:
// rsi <= rsiMax and volume >= minVolume, volume desc then rsi asc.
func TradingPolicy(rsiMax float64, minVolume int64) Policy {
	return Policy{
		Name: "trading",
		Predicate: func(r InstrumentRecord) bool {
			rsi, ok1 := r.Value(FieldRSI)
			vol, ok2 := r.Value(FieldVolume)
			return ok1 && ok2 && rsi <= rsiMax && vol >= float64(minVolume)
		},
		Ordering: []SortKey{{Field: FieldVolume, Desc: true}, {Field: FieldRSI}},
		Limit:    defaultTopN,
	}
}

// ValuePolicy screens cheap dividend payers:
// pe < 12 and yield > 4, pe asc then yield desc.
func ValuePolicy() Policy {
	return Policy{
		Name: "value",
		Predicate: func(r InstrumentRecord) bool {
			pe, ok1 := r.Value(FieldPERatio)
			dy, ok2 := r.Value(FieldDividendYield)
			return ok1 && ok2 && pe < 12 && dy > 4
		},
		Ordering: []SortKey{{Field: FieldPERatio}, {Field: FieldDividendYield, Desc: true}},
		Limit:    defaultTopN,
	}
}

// Rank filters records with p.Predicate, stable-sorts the survivors by
// p.Ordering and keeps the first p.Limit. The input slice is not modified.
//
// A record missing a sort field goes after every record that has it when the
// key is ascending, and before them when it is descending.
func Rank(records []InstrumentRecord, p Policy) []InstrumentRecord {
	out := make([]InstrumentRecord, 0, len(records))
	if p.Limit <= 0 {
		return out
	}
	for _, r := range records {
		if p.Predicate == nil || p.Predicate(r) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j], p.Ordering)
	})

	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out
}

func less(a, b InstrumentRecord, ordering []SortKey) bool {
	for _, k := range ordering {
		av, aok := a.Value(k.Field)
		bv, bok := b.Value(k.Field)
		switch {
		case !aok && !bok:
			continue
		case !aok:
			// missing is "largest": last ascending, first descending
			return k.Desc
		case !bok:
			return !k.Desc
		case av == bv:
			continue
		case k.Desc:
			return av > bv
		default:
			return av < bv
		}
	}
	return false
}

// Summarize projects f for every record carrying it, keyed by record key.
func Summarize(records []InstrumentRecord, f Field) map[string]float64 {
	out := make(map[string]float64, len(records))
	for _, r := range records {
		if v, ok := r.Value(f); ok {
			out[r.Key] = v
		}
	}
	return out
}
