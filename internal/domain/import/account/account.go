// Package account derives an account hint from a statement file name.
package account

import (
	"path/filepath"
	"regexp"
	"strings"
)

const (
	defaultBankGuess = "Crédit Mutuel"
	unknownBank      = "Unknown bank"
	mask             = "•"
)

var (
	accountNumberRe = regexp.MustCompile(`^\d{11}$`)
	ribRe           = regexp.MustCompile(`^(\d{5})[\s\-_.]?(\d{5})[\s\-_.]?(\d{11})[\s\-_.]?(\d{2})$`)
)

// bankCodes maps the 5-digit French bank code of a RIB to its bank.
var bankCodes = map[string]string{
	"10278": "Crédit Mutuel",
	"30004": "BNP Paribas",
	"30003": "Société Générale",
	"30002": "LCL",
	"20041": "La Banque Postale",
	"30066": "CIC",
	"11306": "Crédit Agricole",
	"17515": "Caisse d'Épargne",
	"40618": "Boursorama",
	"30056": "HSBC",
}

// RIBParts are the components of a French relevé d'identité bancaire.
type RIBParts struct {
	BankCode      string `json:"bankCode"`
	BranchCode    string `json:"branchCode"`
	AccountNumber string `json:"accountNumber"`
	Key           string `json:"key"`
}

// Hint is account metadata guessed from a file name.
type Hint struct {
	AccountNumber string    `json:"accountNumber"`
	MaskedNumber  string    `json:"maskedNumber"`
	AccountLabel  string    `json:"accountLabel"`
	BankGuess     string    `json:"bankGuess"`
	RIB           *RIBParts `json:"ribParts,omitempty"`
}

// DetectHint inspects the base name of filename, without extension. It
// returns nil when the name looks like neither an account number nor a RIB.
func DetectHint(filename string) *Hint {
	name := filepath.Base(filename)
	name = strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))

	if accountNumberRe.MatchString(name) {
		return &Hint{
			AccountNumber: name,
			MaskedNumber:  maskNumber(name),
			AccountLabel:  "Compte " + maskNumber(name),
			BankGuess:     defaultBankGuess,
		}
	}

	if m := ribRe.FindStringSubmatch(name); m != nil {
		rib := &RIBParts{BankCode: m[1], BranchCode: m[2], AccountNumber: m[3], Key: m[4]}
		bank, ok := bankCodes[rib.BankCode]
		if !ok {
			bank = unknownBank
		}
		return &Hint{
			AccountNumber: rib.AccountNumber,
			MaskedNumber:  maskNumber(rib.AccountNumber),
			AccountLabel:  "Compte " + maskNumber(rib.AccountNumber),
			BankGuess:     bank,
			RIB:           rib,
		}
	}
	return nil
}

// maskNumber hides all but the last four digits.
func maskNumber(n string) string {
	if len(n) <= 4 {
		return n
	}
	return strings.Repeat(mask, len(n)-4) + n[len(n)-4:]
}
