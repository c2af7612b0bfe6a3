package machiavelli

// DisasterTable is an 11x11 grid of area codes indexed by 2d6-2. Empty cells
// affect nothing.
type DisasterTable [11][11]string

// PlagueTable lists the areas struck by plague.
var PlagueTable = DisasterTable{
	{"", "SWI", "", "", "CAR", "", "", "", "", "MON", "CAP"},
	{"RAG", "BOS", "SLA", "", "", "", "CRO", "", "", "BARI", "TYR"},
	{"SAV", "", "", "FRI", "", "ROME", "", "MAR", "PAV", "", ""},
	{"", "SAL", "VER", "", "DAL", "LUC", "BOL", "CARIN", "PRO", "", ""},
	{"", "", "TUR", "SIE", "MES", "PAD", "AUS", "FER", "", "", ""},
	{"PAL", "", "GEN", "ALB", "PISA", "TUN", "AVI", "MIL", "", "", "SAR"},
	{"DUR", "", "NAP", "MOD", "PER", "CRE", "VEN", "FLO", "", "", ""},
	{"", "BER", "ANC", "PAR", "", "", "", "", "MAN", "IST", ""},
	{"PIO", "HUN", "", "URB", "", "", "", "", "TRE", "", "COMO"},
	{"ARE", "FOR", "", "", "", "", "", "OTR", "", "AQU", "SPO"},
	{"TRENT", "HER", "", "PIS", "", "", "", "COR", "", "PAT", "SALZ"},
}

// FamineTable lists the areas struck by famine.
var FamineTable = DisasterTable{
	{"", "", "PRO", "PAT", "MOD", "", "COR", "ANC", "", "", ""},
	{"", "PIO", "", "", "", "", "", "TUN", "", "", "PAL"},
	{"PER", "", "OTR", "PAD", "SWI", "CRE", "", "", "HER", "", ""},
	{"FRI", "", "BOL", "SAL", "VER", "AUS", "MIL", "SIE", "", "", "DUR"},
	{"MAR", "RAG", "", "CARIN", "BER", "PIS", "SPO", "", "", "HUN", ""},
	{"", "BARI", "SLA", "MON", "URB", "FOR", "", "COMO", "TRENT", "", ""},
	{"FER", "", "ROME", "PAV", "", "", "ARE", "", "SALZ", "ALB", "GEN"},
	{"", "", "CRO", "", "FLO", "TUR", "MAN", "CAP", "TRE", "", ""},
	{"SAV", "", "SAR", "", "PAR", "BOS", "TYR", "", "NAP", "", "DAL"},
	{"", "", "VEN", "", "", "", "", "CAR", "", "MES", ""},
	{"", "", "", "PISA", "AQU", "AVI", "LUC", "", "IST", "", ""},
}

// StormTable lists the sea areas struck by storms.
var StormTable = DisasterTable{
	{"", "", "", "IS", "", "", "", "", "", "", ""},
	{"UA", "", "", "", "", "", "", "", "", "WM", ""},
	{"", "", "GOL", "", "", "", "", "", "", "", ""},
	{"", "", "", "", "", "", "", "", "", "", ""},
	{"", "", "", "", "", "", "", "", "", "", ""},
	{"", "", "", "", "", "TS", "", "", "", "", ""},
	{"", "", "", "", "", "", "", "", "", "", ""},
	{"", "", "", "", "", "", "", "", "", "", ""},
	{"", "", "", "", "", "", "", "", "", "LS", ""},
	{"", "CM", "", "", "", "", "", "", "GON", "", ""},
	{"", "", "", "", "", "", "", "LA", "", "", ""},
}

// YearQuality rolls the 1d6 that decides how bad the year is.
func YearQuality(d Dice) int {
	return d.Roll1d6()
}

// RowIndex returns a table row for bad years (2, 3 or 6).
func RowIndex(d Dice, year int) (int, bool) {
	switch year {
	case 2, 3, 6:
		return d.Roll2d6() - 2, true
	}
	return 0, false
}

// ColumnIndex returns a table column for bad years (4, 5 or 6).
func ColumnIndex(d Dice, year int) (int, bool) {
	switch year {
	case 4, 5, 6:
		return d.Roll2d6() - 2, true
	}
	return 0, false
}

// AffectedProvinces returns the whole selected row followed by the whole
// selected column, skipping empty cells. The cell at the intersection appears
// twice; callers treat the result as a set.
func (t *DisasterTable) AffectedProvinces(row int, hasRow bool, col int, hasCol bool) []string {
	var codes []string
	if hasRow && row >= 0 && row < len(t) {
		for _, c := range t[row] {
			if c != "" {
				codes = append(codes, c)
			}
		}
	}
	if hasCol && col >= 0 && col < len(t[0]) {
		for r := range t {
			if c := t[r][col]; c != "" {
				codes = append(codes, c)
			}
		}
	}
	return codes
}

// Roll draws the year quality, row and column and returns the struck areas.
func (t *DisasterTable) Roll(d Dice) []string {
	year := YearQuality(d)
	row, hasRow := RowIndex(d, year)
	col, hasCol := ColumnIndex(d, year)
	return t.AffectedProvinces(row, hasRow, col, hasCol)
}
