package machiavelli

// IncomeTable holds the variable income, by 1d6 result, of countries (keyed
// by country key) and major cities (keyed by area code). Index 0 is unused.
var IncomeTable = map[string][7]int{
	"austria":  {0, 1, 2, 3, 3, 4, 4},
	"florence": {0, 1, 2, 3, 3, 4, 5},
	"FLO":      {0, 1, 2, 3, 3, 4, 5},
	"france":   {0, 1, 2, 3, 4, 5, 6},
	"GEN":      {0, 1, 2, 2, 3, 3, 4},
	"genoa":    {0, 2, 2, 3, 3, 4, 5},
	"hre":      {0, 1, 2, 3, 3, 4, 4},
	"milan":    {0, 2, 3, 3, 4, 4, 5},
	"MIL":      {0, 2, 3, 3, 4, 4, 5},
	"naples":   {0, 1, 2, 2, 3, 3, 4},
	"NAP":      {0, 1, 2, 2, 3, 3, 4},
	"papacy":   {0, 1, 2, 2, 3, 4, 5},
	"ROME":     {0, 2, 3, 3, 4, 5, 6},
	"savoy":    {0, 1, 2, 3, 4, 5, 6},
	"spain":    {0, 1, 2, 3, 3, 4, 4},
	"turks":    {0, 1, 2, 3, 4, 5, 6},
	"TUN":      {0, 1, 2, 3, 4, 5, 6},
	"venice":   {0, 2, 3, 3, 4, 4, 5},
	"VEN":      {0, 2, 3, 3, 4, 4, 5},
}

// Ducats returns the variable income for key on a die roll of col, doubled
// when double is set. Unknown keys and rolls outside 1..6 pay nothing.
func Ducats(key string, col int, double bool) int {
	row, ok := IncomeTable[key]
	if !ok || col < 1 || col > 6 {
		return 0
	}
	if double {
		return row[col] * 2
	}
	return row[col]
}
