package scrape

import "strings"

// neighborhoodStreets maps a San Francisco neighborhood to street name
// fragments that place an address inside it. Order matters: the first
// neighborhood whose fragment appears wins.
var neighborhoodStreets = []struct {
	Name    string
	Streets []string
}{
	{"Marina District", []string{"marina", "chestnut", "lombard"}},
	{"Mission District", []string{"mission", "valencia", "24th", "16th"}},
	{"SOMA", []string{"townsend", "folsom", "howard", "2nd", "3rd"}},
	{"Richmond District", []string{"geary", "clement"}},
	{"Sunset District", []string{"judah", "noriega", "taraval"}},
	{"Noe Valley", []string{"24th", "castro", "noe"}},
	{"Castro", []string{"castro", "market", "18th"}},
	{"Pacific Heights", []string{"pacific", "broadway", "fillmore"}},
	{"Haight-Ashbury", []string{"haight", "ashbury"}},
	{"North Beach", []string{"columbus", "broadway", "grant"}},
}

// InferNeighborhood guesses a neighborhood from a street address. When no
// street fragment matches it falls back to the city name, so downstream
// value consolidation still has something to group on.
func InferNeighborhood(address, fallbackCity string) string {
	lowered := strings.ToLower(address)
	for _, entry := range neighborhoodStreets {
		for _, street := range entry.Streets {
			if strings.Contains(lowered, street) {
				return entry.Name
			}
		}
	}
	return fallbackCity
}
