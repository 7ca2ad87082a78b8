package cityfinder

// Difficulty is a named preset offered on the start screen.
type Difficulty struct {
	Key        string           `json:"key"`
	Name       string           `json:"name"`
	CoverImage string           `json:"coverImage"`
	Filter     DifficultyFilter `json:"filter"`
}

var presets = []Difficulty{
	{
		Key: "easy", Name: "Easy Mode", CoverImage: "/images/new-york-city.png",
		Filter: DifficultyFilter{MinPopulation: 7_000_000, Cities: 3, ExcludedCountries: []string{"China"}},
	},
	{
		Key: "usa", Name: "USA Mode", CoverImage: "/images/usa.png",
		Filter: DifficultyFilter{MinPopulation: 200_000, Cities: 5, AllowedCountries: []string{"United States"}},
	},
	{
		Key: "medium", Name: "Medium Mode", CoverImage: "/images/quebec.png",
		Filter: DifficultyFilter{MinPopulation: 2_000_000, Cities: 5},
	},
	{
		Key: "hard", Name: "Hard Mode", CoverImage: "/images/gqeberha.png",
		Filter: DifficultyFilter{MinPopulation: 1_000_000, Cities: 5},
	},
	{
		Key: "extreme", Name: "Extreme Mode", CoverImage: "/images/alcalá-de-henares.png",
		Filter: DifficultyFilter{MinPopulation: 100_000, Cities: 5},
	},
	{
		Key: "impossible", Name: "Impossible Mode", CoverImage: "/images/warwick.png",
		Filter: DifficultyFilter{MinPopulation: 50_000, MaxPopulation: 1_000_000, Cities: 5, NoLabels: true},
	},
	{
		Key: "custom", Name: "Custom Mode", CoverImage: "/images/generic-globe.png",
		Filter: DifficultyFilter{MinPopulation: 0, Cities: 5},
	},
}

// Presets returns the difficulty presets in display order.
func Presets() []Difficulty {
	out := make([]Difficulty, len(presets))
	for i, p := range presets {
		p.Filter = p.Filter.clone()
		out[i] = p
	}
	return out
}

func Preset(key string) (Difficulty, bool) {
	for _, p := range presets {
		if p.Key == key {
			p.Filter = p.Filter.clone()
			return p, true
		}
	}
	return Difficulty{}, false
}

func (f DifficultyFilter) clone() DifficultyFilter {
	f.AllowedCountries = append([]string(nil), f.AllowedCountries...)
	f.ExcludedCountries = append([]string(nil), f.ExcludedCountries...)
	return f
}
