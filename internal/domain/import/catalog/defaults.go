package catalog

import "regexp"

// Category labels of the built-in taxonomy.
const (
	CategorySalary          = "Salaires"
	CategorySocialSecurity  = "Remboursement Sécurité sociale"
	CategoryMutualInsurance = "Remboursement mutuelle"
	CategoryTaxes           = "Impôts"
	CategoryUtilities       = "Énergie"
	CategoryTelecom         = "Télécom"
	CategoryInsurance       = "Assurances"
	CategoryGroceries       = "Alimentation"
	CategoryFuel            = "Carburant"
	CategoryRestaurant      = "Restaurants"
	CategoryECommerce       = "E-commerce"
	CategoryMortgage        = "Crédit immobilier"
	CategoryRent            = "Loyer"
	CategoryHealth          = "Santé"
	CategoryCashWithdrawal  = "Retrait espèces"
	CategoryCardPayment     = "Paiement carte"
	CategoryTransfer        = "Virements"
	CategoryCheck           = "Chèques"
	CategoryBankFees        = "Frais bancaires"
	CategorySubscriptions   = "Abonnements"

	// CategoryOther is assigned when no rule matches.
	CategoryOther = "Other"
)

// Default returns the built-in catalog of French bank exports.
func Default() Catalog {
	return Catalog{
		Formats:       DefaultFormats(),
		GlobalAliases: DefaultGlobalAliases(),
		CategoryRules: DefaultCategoryRules(),
	}
}

// DefaultFormats returns the known-bank descriptors in scoring order. On a
// score tie the earlier entry wins.
func DefaultFormats() []FormatDescriptor {
	return []FormatDescriptor{
		{
			Name:       "Crédit Mutuel",
			Separator:  ';',
			Encoding:   "windows-1252",
			DateFormat: LayoutDMYSlash,
			HeaderAliases: AliasTable{
				FieldDate:      {"Date", "Date d'opération"},
				FieldDateValue: {"Date de valeur", "Valeur"},
				FieldLabel:     {"Libellé", "Libelle"},
				FieldDebit:     {"Débit", "Debit"},
				FieldCredit:    {"Crédit", "Credit"},
				FieldBalance:   {"Solde"},
			},
		},
		{
			Name:       "CIC",
			Separator:  ';',
			Encoding:   "windows-1252",
			DateFormat: LayoutDMYSlash,
			HeaderAliases: AliasTable{
				FieldDate:      {"Date"},
				FieldDateValue: {"Date de valeur"},
				FieldLabel:     {"Libellé"},
				FieldDebit:     {"Débit"},
				FieldCredit:    {"Crédit"},
				FieldBalance:   {"Solde"},
			},
			Quoted: true,
		},
		{
			Name:       "BNP Paribas",
			Separator:  ';',
			Encoding:   "windows-1252",
			DateFormat: LayoutDMYSlash,
			HeaderAliases: AliasTable{
				FieldDate:     {"Date opération", "Date operation", "Date"},
				FieldLabel:    {"Libellé opération", "Libellé court", "Libellé"},
				FieldAmount:   {"Montant opération", "Montant operation", "Montant"},
				FieldCategory: {"Catégorie opération", "Type opération"},
			},
			Quoted: true,
		},
		{
			Name:       "Société Générale",
			Separator:  ';',
			Encoding:   "windows-1252",
			DateFormat: LayoutDMYSlash,
			HeaderAliases: AliasTable{
				FieldDate:     {"Date de l'opération", "Date"},
				FieldLabel:    {"Libellé", "Détail de l'écriture"},
				FieldAmount:   {"Montant de l'opération", "Montant"},
				FieldCurrency: {"Devise"},
			},
			Quoted: true,
		},
		{
			Name:       "Crédit Agricole",
			Separator:  ';',
			Encoding:   "windows-1252",
			DateFormat: LayoutDMYSlash,
			HeaderAliases: AliasTable{
				FieldDate:   {"Date"},
				FieldLabel:  {"Libellé"},
				FieldDebit:  {"Débit euros", "Débit EUR"},
				FieldCredit: {"Crédit euros", "Crédit EUR"},
			},
			Quoted: true,
		},
		{
			Name:       "La Banque Postale",
			Separator:  ';',
			Encoding:   "iso-8859-1",
			DateFormat: LayoutDMYSlash,
			HeaderAliases: AliasTable{
				FieldDate:   {"Date"},
				FieldLabel:  {"Libellé"},
				FieldAmount: {"Montant(EUROS)", "Montant(EUR)", "Montant(FRANCS)"},
			},
		},
		{
			Name:       "LCL",
			Separator:  ';',
			Encoding:   "windows-1252",
			DateFormat: LayoutDMYSlash,
			HeaderAliases: AliasTable{
				FieldDate:      {"Date"},
				FieldAmount:    {"Montant"},
				FieldCategory:  {"Type"},
				FieldLabel:     {"Libellé"},
				FieldReference: {"Référence", "N° de chèque"},
			},
		},
		{
			Name:       "Caisse d'Épargne",
			Separator:  ';',
			Encoding:   "windows-1252",
			DateFormat: LayoutDMYSlash,
			HeaderAliases: AliasTable{
				FieldDate:      {"Date"},
				FieldReference: {"Numéro d'opération"},
				FieldLabel:     {"Libellé"},
				FieldDebit:     {"Débit"},
				FieldCredit:    {"Crédit"},
			},
		},
		{
			Name:       "Boursorama",
			Separator:  ';',
			Encoding:   "utf-8",
			DateFormat: LayoutISO,
			HeaderAliases: AliasTable{
				FieldDate:      {"dateOp"},
				FieldDateValue: {"dateVal"},
				FieldLabel:     {"label"},
				FieldCategory:  {"category", "categoryParent"},
				FieldAmount:    {"amount"},
				FieldBalance:   {"accountbalance"},
			},
			Quoted: true,
		},
		{
			Name:       "N26",
			Separator:  ',',
			Encoding:   "utf-8",
			DateFormat: LayoutISO,
			HeaderAliases: AliasTable{
				FieldDate:      {"Date", "Booking Date"},
				FieldDateValue: {"Value Date"},
				FieldLabel:     {"Payee", "Partner Name"},
				FieldReference: {"Payment reference", "Payment Reference"},
				FieldAmount:    {"Amount (EUR)", "Amount (EUR) "},
				FieldCategory:  {"Category", "Transaction type"},
			},
			Quoted: true,
		},
		{
			Name:       "Export bancaire (anglais)",
			Separator:  ',',
			Encoding:   "utf-8",
			DateFormat: LayoutISO,
			HeaderAliases: AliasTable{
				FieldDate:      {"Date", "Transaction Date", "Posting Date"},
				FieldLabel:     {"Description", "Label", "Memo"},
				FieldAmount:    {"Amount"},
				FieldDebit:     {"Debit"},
				FieldCredit:    {"Credit"},
				FieldBalance:   {"Balance"},
				FieldReference: {"Reference"},
				FieldCurrency:  {"Currency"},
				FieldCategory:  {"Category"},
			},
			Quoted: true,
		},
	}
}

// DefaultGlobalAliases returns the fallback alias table. Spellings are lower
// case; lookups against it are case-insensitive. Entries are walked in
// Fields order, which makes "Date de valeur" map to date during synthesis.
func DefaultGlobalAliases() AliasTable {
	return AliasTable{
		FieldDate: {
			"date", "date opération", "date operation", "date de l'opération",
			"date comptable", "dateop", "booking date", "transaction date",
		},
		FieldDateValue: {
			"date de valeur", "date valeur", "datevaleur", "dateval", "value date", "valeur",
		},
		FieldLabel: {
			"libellé", "libelle", "label", "description", "intitulé", "détail", "memo",
		},
		FieldAmount: {
			"montant", "amount", "somme",
		},
		FieldDebit: {
			"débit", "debit", "sortie",
		},
		FieldCredit: {
			"crédit", "credit", "entrée",
		},
		FieldBalance: {
			"solde", "balance", "accountbalance",
		},
		FieldReference: {
			"référence", "reference", "numéro d'opération", "n° opération",
		},
		FieldCurrency: {
			"devise", "currency", "monnaie",
		},
		FieldCategory: {
			"catégorie", "categorie", "category", "type",
		},
	}
}

// DefaultCategoryRules returns the ordered categorization rules. The order is
// load-bearing: the first matching rule wins.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{regexp.MustCompile(`SALAIRE|\bPAIE\b|R[EÉ]MUN[EÉ]RATION|TRAITEMENT`), CategorySalary},
		{regexp.MustCompile(`CPAM|C\.P\.A\.M|AMELI|S[EÉ]CURIT[EÉ] SOCIALE|CAISSE PRIMAIRE`), CategorySocialSecurity},
		{regexp.MustCompile(`MUTUELLE|\bMGEN\b|HARMONIE|ALMERYS|VIAMEDIS`), CategoryMutualInsurance},
		{regexp.MustCompile(`IMP[OÔ]TS?\b|DGFIP|TR[EÉ]SOR PUBLIC|\bTAXE`), CategoryTaxes},
		{regexp.MustCompile(`\bEDF\b|ENGIE|\bGDF\b|TOTAL ?ENERGIES|\bEAU\b|VEOLIA|\bSUEZ\b|ENERCOOP`), CategoryUtilities},
		{regexp.MustCompile(`ORANGE|\bSFR\b|BOUYGUES|FREE MOBILE|FREE TELECOM|FREEBOX|\bSOSH\b`), CategoryTelecom},
		{regexp.MustCompile(`ASSURANCE|\bAXA\b|\bMAIF\b|\bMACIF\b|MATMUT|ALLIANZ|GROUPAMA|\bMAAF\b|\bGMF\b`), CategoryInsurance},
		{regexp.MustCompile(`CARREFOUR|LECLERC|AUCHAN|INTERMARCH[EÉ]|\bLIDL\b|\bALDI\b|MONOPRIX|FRANPRIX|CASINO|SUPER U\b|HYPER U\b|SYSTEME U\b|PICARD|\bSPAR\b|NETTO|GRAND FRAIS`), CategoryGroceries},
		{regexp.MustCompile(`\bTOTAL\b|\bESSO\b|\bSHELL\b|\bBP\b|CARBURANT|STATION|\bAVIA\b|\bAGIP\b`), CategoryFuel},
		{regexp.MustCompile(`RESTAURANT|\bRESTO|MC ?DONALD|\bMCDO\b|BURGER|\bKFC\b|BRASSERIE|PIZZ|\bCAFE\b|BOULANGERIE|UBER ?EATS|DELIVEROO`), CategoryRestaurant},
		{regexp.MustCompile(`AMAZON|CDISCOUNT|\bFNAC\b|DARTY|PAYPAL|\bEBAY\b|ALIEXPRESS|ZALANDO|VINTED`), CategoryECommerce},
		{regexp.MustCompile(`PR[EÊ]T IMMO|CR[EÉ]DIT IMMO|[EÉ]CH[EÉ]ANCE PR[EÊ]T|REMBOURSEMENT PR[EÊ]T`), CategoryMortgage},
		{regexp.MustCompile(`LOYER|FONCIA|NEXITY|CITYA`), CategoryRent},
		{regexp.MustCompile(`PHARMACIE|DOCTEUR|\bDR\b|M[EÉ]DECIN|H[OÔ]PITAL|CLINIQUE|LABORATOIRE|DENTISTE|KIN[EÉ]`), CategoryHealth},
		{regexp.MustCompile(`RETRAIT|\bDAB\b|\bGAB\b|DISTRIBUTEUR`), CategoryCashWithdrawal},
		{regexp.MustCompile(`\bCARTE\b|\bCB\b|PAIEMENT PAR CARTE|FACTURE CARTE`), CategoryCardPayment},
		{regexp.MustCompile(`VIREMENT|\bVIR\b|\bVRT\b|\bSEPA\b`), CategoryTransfer},
		{regexp.MustCompile(`CH[EÈ]QUE|\bCHQ\b`), CategoryCheck},
		{regexp.MustCompile(`FRAIS|COMMISSION|COTISATION|AGIOS|INT[EÉ]R[EÊ]TS D[EÉ]BITEURS`), CategoryBankFees},
		{regexp.MustCompile(`NETFLIX|SPOTIFY|DEEZER|CANAL ?\+|DISNEY|ABONNEMENT|PRIME VIDEO|APPLE\.COM`), CategorySubscriptions},
	}
}
