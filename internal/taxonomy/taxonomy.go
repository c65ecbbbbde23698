// Package taxonomy collapses free-text categories produced by the extraction
// step into fixed canonical labels.
package taxonomy

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Rule maps any of its needles to Label. Needles are lower-case word
// prefixes: "curso" matches "cursos de inglés" but not "recursos".
type Rule struct {
	Label   string
	Needles []string
}

func (r Rule) Match(lowered string) bool {
	for _, n := range r.Needles {
		if containsWordPrefix(lowered, n) {
			return true
		}
	}
	return false
}

func containsWordPrefix(s, needle string) bool {
	for off := 0; off <= len(s); {
		i := strings.Index(s[off:], needle)
		if i < 0 {
			return false
		}
		i += off
		if i == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:i])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		off = i + size
	}
	return false
}

const (
	IndustryOther = "Otros"
	GoalOther     = "Otro"

	industryPlaceholder   = "Otro"
	leadSourcePlaceholder = "Otro"
	goalPlaceholder       = "unknown"
)

// IndustryRules are evaluated in order; "fintech" must resolve to Finanzas
// before the Tecnología rule sees "tech".
var IndustryRules = []Rule{
	{"Finanzas", []string{"financ", "banc", "fintech", "seguro", "asegurador", "inversi", "crédit", "credit", "contab"}},
	{"Salud", []string{"salud", "clínic", "clinic", "médic", "medic", "hospital", "farmac", "dental", "odontol"}},
	{"E-Commerce / Retail", []string{"e-commerce", "ecommerce", "comercio electr", "retail", "tienda", "moda", "ropa", "venta online"}},
	{"Logística", []string{"logíst", "logist", "transporte", "envío", "envio", "courier", "distribu", "almac"}},
	{"Turismo", []string{"turism", "hotel", "viaje", "hospedaje", "aerol", "tour"}},
	{"Tecnología", []string{"tecnolog", "software", "saas", "informát", "informat", "tech", "startup", "desarrollo web"}},
	{"Educación", []string{"educa", "colegio", "universi", "escuela", "academia", "capacitaci", "curso"}},
	{"Legal", []string{"legal", "abogad", "jurídic", "juridic", "notar"}},
	{"Estética", []string{"estétic", "estetic", "belleza", "peluquer", "cosmét", "cosmet", "barber"}},
	{"Alimentos", []string{"aliment", "restaur", "comida", "gastronom", "cafeter", "bebida", "panader"}},
	{"Consultorías", []string{"consult", "asesor"}},
}

// LeadSourceRules put events first so "webinar" is not swallowed by "web".
var LeadSourceRules = []Rule{
	{"Evento", []string{"webinar", "evento", "conferencia", "feria", "congreso", "seminario", "meetup", "charla", "expo"}},
	{"Artículo / Blog", []string{"artículo", "articulo", "blog", "newsletter"}},
	{"Podcast / Media", []string{"podcast", "radio", "medios", "prensa", "youtube", "televisi", "entrevista"}},
	{"Referencia", []string{"referencia", "referid", "recomend", "amigo", "colega", "conocido", "boca"}},
	{"Búsqueda web / Online", []string{"google", "búsqueda", "busqueda", "buscador", "internet", "web", "online", "redes", "linkedin", "instagram", "facebook", "anuncio"}},
}

var GoalRules = []Rule{
	{"Productividad / Automatización", []string{"automatiz", "productiv", "eficien", "ahorrar tiempo", "manual", "repetitiv", "carga operativa"}},
	{"Insights / Reporting", []string{"insight", "report", "métrica", "metrica", "análisis", "analisis", "datos", "dashboard", "visibilidad"}},
	{"Ventas y Pipeline", []string{"ventas", "vender", "pipeline", "conversi", "lead", "prospect", "cierre", "embudo", "nuevos clientes"}},
	{"Atención al Cliente / Soporte", []string{"atención", "atencion", "soporte", "servicio al cliente", "consultas", "tiempo de respuesta"}},
	{"Competencia / Benchmarking", []string{"competencia", "competidor", "benchmark", "mercado"}},
}

// Classify returns the label of the first matching rule, or "" when none match.
func Classify(raw string, rules []Rule) string {
	lowered := strings.ToLower(norm.NFC.String(raw))
	for _, r := range rules {
		if r.Match(lowered) {
			return r.Label
		}
	}
	return ""
}

// NormalizeIndustry always returns one of the twelve industry labels.
func NormalizeIndustry(raw string) string {
	if label := Classify(orPlaceholder(raw, industryPlaceholder), IndustryRules); label != "" {
		return label
	}
	return IndustryOther
}

// NormalizeLeadSource returns a canonical label, or the input unchanged when
// no rule matches.
func NormalizeLeadSource(raw string) string {
	raw = orPlaceholder(raw, leadSourcePlaceholder)
	if label := Classify(raw, LeadSourceRules); label != "" {
		return label
	}
	return raw
}

func CategorizeGoal(raw string) string {
	if label := Classify(orPlaceholder(raw, goalPlaceholder), GoalRules); label != "" {
		return label
	}
	return GoalOther
}

// IndustryLabels lists every value NormalizeIndustry can return.
func IndustryLabels() []string {
	return append(labels(IndustryRules), IndustryOther)
}

func GoalLabels() []string {
	return append(labels(GoalRules), GoalOther)
}

func labels(rules []Rule) []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.Label)
	}
	return out
}

func orPlaceholder(raw, placeholder string) string {
	if strings.TrimSpace(raw) == "" {
		return placeholder
	}
	return raw
}
