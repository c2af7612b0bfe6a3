package machiavelli

import (
	_ "embed"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed scenarios/italy1454.yaml
var italy1454 []byte

// Scenario is the static reference data a game is created from.
type Scenario struct {
	Name        string        `yaml:"name"`
	StartYear   int           `yaml:"start_year"`
	CitiesToWin int           `yaml:"cities_to_win"`
	Areas       []AreaSpec    `yaml:"areas"`
	Countries   []CountrySpec `yaml:"countries"`
	Autonomous  []SetupSpec   `yaml:"autonomous"`
	Routes      []RouteSpec   `yaml:"routes"`

	Board *Board `yaml:"-"`
}

// AreaSpec is the YAML form of an Area plus its borders.
type AreaSpec struct {
	Code           string   `yaml:"code"`
	Name           string   `yaml:"name"`
	Sea            bool     `yaml:"sea"`
	Coast          bool     `yaml:"coast"`
	Fortified      bool     `yaml:"fortified"`
	Port           bool     `yaml:"port"`
	City           bool     `yaml:"city"`
	Mixed          bool     `yaml:"mixed"`
	MajorCity      bool     `yaml:"major_city"`
	ControlIncome  int      `yaml:"control_income"`
	GarrisonIncome int      `yaml:"garrison_income"`
	Religion       string   `yaml:"religion"`
	Borders        []string `yaml:"borders"`
	NoFleet        []string `yaml:"no_fleet"`
}

// CountrySpec describes a playable country.
type CountrySpec struct {
	Key              string        `yaml:"key"`
	Name             string        `yaml:"name"`
	Religion         string        `yaml:"religion"`
	Ducats           int           `yaml:"ducats"`
	DoubleIncome     bool          `yaml:"double_income"`
	MayExcommunicate bool          `yaml:"may_excommunicate"`
	Home             []string      `yaml:"home"`
	Setup            []SetupSpec   `yaml:"setup"`
	SpecialUnits     []SpecialUnit `yaml:"special_units"`
}

// SetupSpec places one unit at game start.
type SetupSpec struct {
	Type UnitType `yaml:"type"`
	Area string   `yaml:"area"`
}

// SpecialUnit is a unit class with non-default cost, power or loyalty.
type SpecialUnit struct {
	Name    string `yaml:"name"`
	Cost    int    `yaml:"cost"`
	Power   int    `yaml:"power"`
	Loyalty int    `yaml:"loyalty"`
}

// RouteSpec is a trade route. Ends are the areas whose controllers trade.
type RouteSpec struct {
	Name  string   `yaml:"name"`
	Areas []string `yaml:"areas"`
	Ends  []string `yaml:"ends"`
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	areas := make([]*Area, 0, len(sc.Areas))
	borders := make(map[string][]string, len(sc.Areas))
	noFleet := make(map[string][]string)
	for _, s := range sc.Areas {
		areas = append(areas, &Area{
			Code:           s.Code,
			Name:           s.Name,
			IsSea:          s.Sea,
			IsCoast:        s.Coast,
			IsFortified:    s.Fortified,
			HasPort:        s.Port,
			HasCity:        s.City,
			Mixed:          s.Mixed,
			MajorCity:      s.MajorCity,
			ControlIncome:  s.ControlIncome,
			GarrisonIncome: s.GarrisonIncome,
			Religion:       s.Religion,
		})
		borders[s.Code] = s.Borders
		if len(s.NoFleet) > 0 {
			noFleet[s.Code] = s.NoFleet
		}
	}
	b, err := NewBoard(areas, borders, noFleet)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	sc.Board = b
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if sc.CitiesToWin == 0 {
		sc.CitiesToWin = DefaultCitiesToWin
	}
	return &sc, nil
}

// LoadScenario reads a YAML scenario from r.
func LoadScenario(r io.Reader) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

var (
	defaultScenario     *Scenario
	defaultScenarioErr  error
	defaultScenarioOnce sync.Once
)

// DefaultScenario returns the embedded Italy 1454 scenario, parsed once.
func DefaultScenario() (*Scenario, error) {
	defaultScenarioOnce.Do(func() {
		defaultScenario, defaultScenarioErr = ParseScenario(italy1454)
	})
	return defaultScenario, defaultScenarioErr
}

func (sc *Scenario) validate() error {
	known := func(code string) error {
		if sc.Board.Area(code) == nil {
			return fmt.Errorf("unknown area %s", code)
		}
		return nil
	}
	seen := make(map[string]bool)
	for _, c := range sc.Countries {
		if c.Key == "" || c.Key == AutonomousPlayer {
			return fmt.Errorf("invalid country key %q", c.Key)
		}
		if seen[c.Key] {
			return fmt.Errorf("duplicate country %s", c.Key)
		}
		seen[c.Key] = true
		for _, h := range c.Home {
			if err := known(h); err != nil {
				return fmt.Errorf("country %s home: %w", c.Key, err)
			}
		}
		for _, s := range c.Setup {
			if err := sc.validateSetup(s); err != nil {
				return fmt.Errorf("country %s setup: %w", c.Key, err)
			}
		}
	}
	for _, s := range sc.Autonomous {
		if err := sc.validateSetup(s); err != nil {
			return fmt.Errorf("autonomous setup: %w", err)
		}
	}
	for _, r := range sc.Routes {
		for _, code := range append(append([]string{}, r.Areas...), r.Ends...) {
			if err := known(code); err != nil {
				return fmt.Errorf("route %s: %w", r.Name, err)
			}
		}
	}
	return nil
}

func (sc *Scenario) validateSetup(s SetupSpec) error {
	if !s.Type.Valid() {
		return fmt.Errorf("unknown unit type %q", s.Type)
	}
	if sc.Board.Area(s.Area) == nil {
		return fmt.Errorf("unknown area %s", s.Area)
	}
	return nil
}

// Country returns the country with the given key, or nil.
func (sc *Scenario) Country(key string) *CountrySpec {
	for i := range sc.Countries {
		if sc.Countries[i].Key == key {
			return &sc.Countries[i]
		}
	}
	return nil
}

// CountryKeys returns the playable country keys in scenario order.
func (sc *Scenario) CountryKeys() []string {
	keys := make([]string, len(sc.Countries))
	for i, c := range sc.Countries {
		keys[i] = c.Key
	}
	return keys
}
