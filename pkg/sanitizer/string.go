package sanitizer

import (
	"strings"

	"kayak/pkg/model"
)

func collapseWhitespace(s string) string {
	return reWhitespace.ReplaceAllString(s, " ")
}

// CollapseSpace is the display-text form used for airline, city and person names.
func CollapseSpace(input string) string {
	p := Pipeline{
		strings.TrimSpace,
		collapseWhitespace,
	}
	return p.Apply(input)
}

// NormalizeAirport canonicalizes a parsed airport: the code as an identifier,
// the rest as display text.
func NormalizeAirport(a model.Airport) model.Airport {
	return model.Airport{
		Code:    NormalizeCode(a.Code),
		Name:    CollapseSpace(a.Name),
		City:    CollapseSpace(a.City),
		Country: CollapseSpace(a.Country),
	}
}
