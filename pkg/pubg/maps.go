package pubg

// mapNames translates internal map identifiers to their display names.
var mapNames = map[string]string{
	"Baltic_Main":     "Erangel",
	"Desert_Main":     "Miramar",
	"Savage_Main":     "Sanhok",
	"DihorOtok_Main":  "Vikendi",
	"Summerland_Main": "Karakin",
	"Chimera_Main":    "Paramo",
	"Heaven_Main":     "Haven",
	"Tiger_Main":      "Taego",
	"Kiki_Main":       "Deston",
	"Neon_Main":       "Rondo",
	"Range_Main":      "Range",
}

// TranslateMapName converts an internal map identifier to its display
// name. Unknown identifiers pass through unchanged so new maps keep
// flowing until the table catches up.
func TranslateMapName(internal string) string {
	if name, ok := mapNames[internal]; ok {
		return name
	}
	return internal
}
