package cityfinder

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Query parameter names used when a round is launched or a leaderboard view
// is opened.
const (
	ParamMinPop            = "minPop"
	ParamMaxPop            = "maxPop"
	ParamCities            = "cities"
	ParamNoLabels          = "noLabels"
	ParamAllowedCountries  = "allowedCountries"
	ParamExcludedCountries = "excludedCountries"
)

// Defaults applied when a parameter is absent.
const (
	DefaultMinPopulation int64 = 500_000
	DefaultCities              = 5
)

// Query encodes f into URL query parameters. Country lists are JSON arrays.
func (f DifficultyFilter) Query() url.Values {
	v := url.Values{}
	v.Set(ParamMinPop, strconv.FormatInt(f.MinPopulation, 10))
	if f.MaxPopulation != 0 {
		v.Set(ParamMaxPop, strconv.FormatInt(f.MaxPopulation, 10))
	}
	v.Set(ParamCities, strconv.Itoa(f.Cities))
	v.Set(ParamNoLabels, strconv.FormatBool(f.NoLabels))
	v.Set(ParamAllowedCountries, encodeList(f.AllowedCountries))
	v.Set(ParamExcludedCountries, encodeList(f.ExcludedCountries))
	return v
}

// FilterFromQuery reconstructs a DifficultyFilter from URL query parameters.
func FilterFromQuery(v url.Values) (DifficultyFilter, error) {
	f := DifficultyFilter{
		MinPopulation: DefaultMinPopulation,
		Cities:        DefaultCities,
	}

	var err error
	if s := v.Get(ParamMinPop); s != "" {
		if f.MinPopulation, err = strconv.ParseInt(s, 10, 64); err != nil {
			return f, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, ParamMinPop, err)
		}
	}
	if s := v.Get(ParamMaxPop); s != "" {
		if f.MaxPopulation, err = strconv.ParseInt(s, 10, 64); err != nil {
			return f, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, ParamMaxPop, err)
		}
	}
	if s := v.Get(ParamCities); s != "" {
		if f.Cities, err = strconv.Atoi(s); err != nil {
			return f, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, ParamCities, err)
		}
	}
	f.NoLabels = v.Get(ParamNoLabels) == "true"

	if f.AllowedCountries, err = decodeList(v.Get(ParamAllowedCountries)); err != nil {
		return f, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, ParamAllowedCountries, err)
	}
	if f.ExcludedCountries, err = decodeList(v.Get(ParamExcludedCountries)); err != nil {
		return f, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, ParamExcludedCountries, err)
	}

	return f, f.Validate()
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}
