package enrich

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rule rewrites a (city, country) pair known to confuse the geocoder onto a
// canonical, lookup-friendly pair. Match terms are case-insensitive
// substrings tested against the original fields; every listed term must be
// present. Rules are evaluated in order and the first match wins.
type Rule struct {
	CityContains    []string `yaml:"city_contains" mapstructure:"city_contains"`
	CountryContains []string `yaml:"country_contains" mapstructure:"country_contains"`
	City            string   `yaml:"city" mapstructure:"city"`
	Country         string   `yaml:"country" mapstructure:"country"`
}

// Matches reports whether the rule applies to the original pair.
func (r Rule) Matches(city, country string) bool {
	cityLower := strings.ToLower(city)
	countryLower := strings.ToLower(country)
	for _, term := range r.CityContains {
		if !strings.Contains(cityLower, strings.ToLower(term)) {
			return false
		}
	}
	for _, term := range r.CountryContains {
		if !strings.Contains(countryLower, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// DefaultRules returns the built-in rewrite rules. New special cases belong
// here (or in a rules file), not in resolver control flow.
func DefaultRules() []Rule {
	return []Rule{
		{
			CityContains:    []string{"vatican"},
			CountryContains: []string{"vatican"},
			City:            "Rome",
			Country:         "Italy",
		},
		{
			CityContains: []string{"london", "south kensington"},
			City:         "London",
			Country:      "United Kingdom",
		},
	}
}

// LoadRules reads additional rules from a YAML file. The file holds a plain
// list of rule objects; loaded rules are evaluated after the defaults.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, eris.Wrapf(err, "rules: parse %s", path)
	}
	return rules, nil
}
