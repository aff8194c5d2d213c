package sensor

// Latest returns the newest reading. Ties keep the earlier row, which matches the
// upstream ordering (newest rows first).
func Latest(readings []Reading) (Reading, bool) {
	if len(readings) == 0 {
		return Reading{}, false
	}
	best := readings[0]
	for _, r := range readings[1:] {
		if r.SensingTime.After(best.SensingTime) {
			best = r
		}
	}
	return best, true
}

// Districts returns the distinct districts in order of first appearance.
func Districts(readings []Reading) []string {
	seen := make(map[string]struct{}, len(readings))
	var out []string
	for _, r := range readings {
		if _, ok := seen[r.District]; ok {
			continue
		}
		seen[r.District] = struct{}{}
		out = append(out, r.District)
	}
	return out
}

// FirstForDistrict returns the first row reported for a district.
func FirstForDistrict(readings []Reading, district string) (Reading, bool) {
	for _, r := range readings {
		if r.District == district {
			return r, true
		}
	}
	return Reading{}, false
}

// LatestByDistrict keeps the newest reading per district, in order of first appearance.
func LatestByDistrict(readings []Reading) []Reading {
	index := make(map[string]int)
	var out []Reading
	for _, r := range readings {
		i, ok := index[r.District]
		if !ok {
			index[r.District] = len(out)
			out = append(out, r)
			continue
		}
		if r.SensingTime.After(out[i].SensingTime) {
			out[i] = r
		}
	}
	return out
}
