package rules

// Concept is one entry of the concept classification table: it maps an
// extractor domain label to the downstream concept slug, its display title,
// value interpretation and risk tier.
type Concept struct {
	Slug      string
	Title     string
	ValueType ValueType
	Tier      RiskTier
}

// conceptTable maps extractor domain labels to concepts. Extending coverage
// means adding a row here; candidates whose domain has no row are reported
// as unmapped and never become rules.
var conceptTable = map[string]Concept{
	"vat-rate":           {Slug: "pdv-opca-stopa", Title: "Opća stopa PDV-a", ValueType: ValuePercent, Tier: TierT0},
	"vat-reduced-rate":   {Slug: "pdv-snizena-stopa", Title: "Snižena stopa PDV-a", ValueType: ValuePercent, Tier: TierT1},
	"vat-threshold":      {Slug: "pdv-prag", Title: "Prag ulaska u sustav PDV-a", ValueType: ValueMoney, Tier: TierT1},
	"income-tax-rate":    {Slug: "dohodak-stopa", Title: "Stopa poreza na dohodak", ValueType: ValuePercent, Tier: TierT0},
	"contribution-rate":  {Slug: "doprinosi-stopa", Title: "Stopa doprinosa", ValueType: ValuePercent, Tier: TierT2},
	"filing-deadline":    {Slug: "rok-prijave", Title: "Rok podnošenja prijave", ValueType: ValueDate, Tier: TierT2},
	"per-diem-allowance": {Slug: "dnevnica", Title: "Neoporeziva dnevnica", ValueType: ValueMoney, Tier: TierT3},
	"base-interest-rate": {Slug: "zatezna-kamata", Title: "Stopa zateznih kamata", ValueType: ValuePercent, Tier: TierT2},
}

// Classify resolves an extractor domain label to its concept. ok is false
// for unmapped domains.
func Classify(domainLabel string) (Concept, bool) {
	c, ok := conceptTable[domainLabel]
	return c, ok
}

// ConceptBySlug resolves a concept by its downstream slug.
func ConceptBySlug(slug string) (Concept, bool) {
	for _, c := range conceptTable {
		if c.Slug == slug {
			return c, true
		}
	}
	return Concept{}, false
}
