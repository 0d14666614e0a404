package directory

import (
	"strings"

	"github.com/imprecode/gestion-visitas/internal/models"
)

// Rule maps job-title keywords to an application role. Rules are evaluated in
// order; the first keyword hit wins.
type Rule struct {
	Keywords []string
	Role     string
}

// DefaultRules is the ordered keyword precedence used to derive a role from
// the directory job title. Credit-note and purchasing titles outrank the
// generic manager titles so an "analista de compras" lands as approver, not
// manager.
func DefaultRules() []Rule {
	return []Rule{
		{Keywords: []string{"notas credito", "notas crédito"}, Role: models.RoleAprobador},
		{Keywords: []string{"compras", "suministros"}, Role: models.RoleAprobador},
		{Keywords: []string{"gerente", "gestor de cuenta", "ejecutivo de cuenta"}, Role: models.RoleGestor},
		{Keywords: []string{"vicepresidente"}, Role: models.RoleVicepresidente},
		{Keywords: []string{"administrador"}, Role: models.RoleAdmin},
		{Keywords: []string{"practicante", "aprendiz"}, Role: models.RolePracticante},
	}
}

// subtype keywords are matched separately once a title resolves to approver.
var subtypeKeywords = []struct {
	keyword string
	subtype string
}{
	{"compras", models.SubtypeCompras},
	{"suministros", models.SubtypeSuministros},
}

// MapTitle resolves a directory job title to (role, subtype) using the given
// ordered rules. Matching is a case-insensitive substring check; titles that
// hit no rule come back unassigned. Pure function.
func MapTitle(title string, rules []Rule) (string, string) {
	normalized := strings.ToLower(strings.TrimSpace(title))

	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(normalized, kw) {
				subtype := models.SubtypeNone
				if rule.Role == models.RoleAprobador {
					subtype = matchSubtype(normalized)
				}
				return rule.Role, subtype
			}
		}
	}
	return models.RoleSinAsignar, models.SubtypeNone
}

func matchSubtype(normalizedTitle string) string {
	for _, sk := range subtypeKeywords {
		if strings.Contains(normalizedTitle, sk.keyword) {
			return sk.subtype
		}
	}
	return models.SubtypeNone
}
