// Package myinvois contiene los catálogos de códigos de la especificación MyInvois (LHDN, Malasia)
// y helpers de identificación fiscal. No tiene dependencias de dominio.
package myinvois

// =============================================================================
// Tipos de documento electrónico (e-Invoice Types)
// =============================================================================

const (
	InvoiceTypeInvoice    = "01" // Invoice
	InvoiceTypeCreditNote = "02" // Credit Note
	InvoiceTypeDebitNote  = "03" // Debit Note
	InvoiceTypeRefundNote = "04" // Refund Note
)

// =============================================================================
// Tipos de impuesto (Tax Types)
// =============================================================================

const (
	TaxTypeSales         = "01" // Sales Tax
	TaxTypeService       = "02" // Service Tax
	TaxTypeTourism       = "03" // Tourism Tax
	TaxTypeHighValue     = "04" // High-Value Goods Tax
	TaxTypeLowValue      = "05" // Sales Tax on Low Value Goods
	TaxTypeNotApplicable = "06" // Not Applicable
	TaxTypeExempt        = "E"  // Tax exemption (where applicable)
)

// TaxSchemeID esquema de impuesto fijo exigido en cac:TaxScheme.
const (
	TaxSchemeID       = "OTH"
	TaxSchemeIDScheme = "UN/ECE 5153"
	TaxSchemeAgencyID = "6"
)

// =============================================================================
// Unidades de medida (UN/ECE Recommendation 20) - uso común
// =============================================================================

const (
	UnitPiece     = "C62" // One (unidad)
	UnitEach      = "EA"  // Each
	UnitKilogram  = "KGM" // Kilogramo
	UnitGram      = "GRM" // Gramo
	UnitLitre     = "LTR" // Litro
	UnitMetre     = "MTR" // Metro
	UnitBox       = "BX"  // Caja
	UnitSet       = "SET" // Set
	UnitHour      = "HUR" // Hora
	UnitDay       = "DAY" // Día
	UnitMonth     = "MON" // Mes
	UnitPackage   = "XPK" // Package
	UnitService   = "E48" // Service unit
	UnitLumpSum   = "LS"  // Lump sum
	UnitCarton    = "CT"  // Carton
	UnitDozen     = "DZN" // Docena
	UnitPair      = "PR"  // Par
	UnitTonne     = "TNE" // Tonelada métrica
	UnitSquareMtr = "MTK" // Metro cuadrado
	UnitCubicMtr  = "MTQ" // Metro cúbico
)

// =============================================================================
// Clasificación (Classification Codes) - subconjunto de uso frecuente
// =============================================================================

const (
	ClassificationSelfBilledImporter = "004" // Consolidated e-Invoice
	ClassificationOthers             = "022" // Others
)

// =============================================================================
// Modos de pago (Payment Modes)
// =============================================================================

const (
	PaymentModeCash         = "01"
	PaymentModeCheque       = "02"
	PaymentModeBankTransfer = "03"
	PaymentModeCreditCard   = "04"
	PaymentModeDebitCard    = "05"
	PaymentModeEWallet      = "06"
	PaymentModeDigitalBank  = "07"
	PaymentModeOthers       = "08"
)

// =============================================================================
// Estados (State Codes)
// =============================================================================

const (
	StateNotApplicable = "17"
	CountryMalaysia    = "MYS"
	CurrencyMYR        = "MYR"
)

// GeneralPublicTIN TIN que LHDN exige para compradores sin número de identificación fiscal.
const GeneralPublicTIN = "EI00000000010"

// NotApplicable valor "NA" aceptado por LHDN en identificadores opcionales (BRN, SST, TTX).
const NotApplicable = "NA"

// CodeTables tablas de códigos inmutables que se inyectan al constructor de documentos.
// Se construyen una sola vez al arrancar el proceso (DefaultCodeTables) y no se mutan.
type CodeTables struct {
	unitCodes          map[string]string // alias interno (en minúsculas) -> código UN/ECE
	classificationCode map[string]string // categoría interna -> código de clasificación
	taxTypes           map[string]string // código -> descripción
	paymentModes       map[string]string // alias interno -> código de modo de pago
	stateCodes         map[string]string // nombre de estado (minúsculas) -> código
	invoiceTypes       map[string]string // tipo interno -> código LHDN

	DefaultUnitCode           string
	DefaultClassificationCode string
	StandardTaxType           string
	DefaultStateCode          string
	DefaultCountryCode        string
	DefaultCurrency           string
}

// DefaultCodeTables devuelve las tablas estándar LHDN con los valores por defecto documentados:
// unidad C62, clasificación 022 (Others), impuesto estándar 01, estado 17 (Not Applicable), país MYS.
func DefaultCodeTables() *CodeTables {
	return &CodeTables{
		unitCodes: map[string]string{
			"pcs": UnitPiece, "pc": UnitPiece, "unit": UnitPiece, "units": UnitPiece, "c62": UnitPiece,
			"ea": UnitEach, "each": UnitEach,
			"kg": UnitKilogram, "kgm": UnitKilogram,
			"g": UnitGram, "grm": UnitGram,
			"l": UnitLitre, "ltr": UnitLitre, "litre": UnitLitre,
			"m": UnitMetre, "mtr": UnitMetre,
			"box": UnitBox, "bx": UnitBox,
			"set": UnitSet,
			"hr":  UnitHour, "hour": UnitHour, "hur": UnitHour,
			"day":   UnitDay,
			"month": UnitMonth, "mon": UnitMonth,
			"pkg": UnitPackage, "pack": UnitPackage,
			"service": UnitService, "svc": UnitService,
			"lot": UnitLumpSum, "ls": UnitLumpSum,
			"ctn": UnitCarton, "carton": UnitCarton,
			"dozen": UnitDozen, "dzn": UnitDozen,
			"pair": UnitPair, "pr": UnitPair,
			"ton": UnitTonne, "tne": UnitTonne,
			"m2": UnitSquareMtr, "m3": UnitCubicMtr,
		},
		classificationCode: map[string]string{
			"consolidated":       ClassificationSelfBilledImporter,
			"others":             ClassificationOthers,
			"goods":              ClassificationOthers,
			"medical":            "011",
			"education":          "010",
			"computer":           "008",
			"insurance":          "016",
			"rental":             "031",
			"repair_maintenance": "030",
		},
		taxTypes: map[string]string{
			TaxTypeSales:         "Sales Tax",
			TaxTypeService:       "Service Tax",
			TaxTypeTourism:       "Tourism Tax",
			TaxTypeHighValue:     "High-Value Goods Tax",
			TaxTypeLowValue:      "Sales Tax on Low Value Goods",
			TaxTypeNotApplicable: "Not Applicable",
			TaxTypeExempt:        "Tax exemption (where applicable)",
		},
		paymentModes: map[string]string{
			"cash": PaymentModeCash, "cheque": PaymentModeCheque, "check": PaymentModeCheque,
			"bank_transfer": PaymentModeBankTransfer, "transfer": PaymentModeBankTransfer,
			"credit_card": PaymentModeCreditCard, "debit_card": PaymentModeDebitCard,
			"ewallet": PaymentModeEWallet, "e_wallet": PaymentModeEWallet,
			"digital_bank": PaymentModeDigitalBank, "others": PaymentModeOthers,
		},
		stateCodes: map[string]string{
			"johor": "01", "kedah": "02", "kelantan": "03", "melaka": "04",
			"negeri sembilan": "05", "pahang": "06", "pulau pinang": "07", "penang": "07",
			"perak": "08", "perlis": "09", "selangor": "10", "terengganu": "11",
			"sabah": "12", "sarawak": "13", "kuala lumpur": "14",
			"wilayah persekutuan kuala lumpur": "14", "labuan": "15",
			"wilayah persekutuan labuan": "15", "putrajaya": "16",
			"wilayah persekutuan putrajaya": "16", "not applicable": StateNotApplicable,
		},
		invoiceTypes: map[string]string{
			"INVOICE":     InvoiceTypeInvoice,
			"CREDIT_NOTE": InvoiceTypeCreditNote,
			"DEBIT_NOTE":  InvoiceTypeDebitNote,
			"REFUND_NOTE": InvoiceTypeRefundNote,
		},
		DefaultUnitCode:           UnitPiece,
		DefaultClassificationCode: ClassificationOthers,
		StandardTaxType:           TaxTypeSales,
		DefaultStateCode:          StateNotApplicable,
		DefaultCountryCode:        CountryMalaysia,
		DefaultCurrency:           CurrencyMYR,
	}
}
