// Package generator produces synthetic replacement values for detected
// entities. Generate is a pure function: the same (label, original,
// dateOffset, retrySalt) always yields the same candidate, and a different
// retrySalt yields a different one so the vault can resolve collisions
// deterministically.
//
// Values come from a gofakeit faker seeded with a hash of the inputs, so
// the replacement stays in the original's lexical category without leaking
// anything beyond the category itself.
package generator

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Entity labels the detectors emit and this generator understands.
const (
	LabelPerson        = "PERSON"
	LabelEmail         = "EMAIL_ADDRESS"
	LabelPhone         = "PHONE_NUMBER"
	LabelCreditCard    = "CREDIT_CARD"
	LabelSSN           = "US_SSN"
	LabelPassport      = "PASSPORT"
	LabelDriverLicense = "US_DRIVER_LICENSE"
	LabelIPAddress     = "IP_ADDRESS"
	LabelLocation      = "LOCATION"
	LabelOrganization  = "ORGANIZATION"
	LabelDateTime      = "DATE_TIME"
	LabelURL           = "URL"
	LabelBankNumber    = "US_BANK_NUMBER"
	LabelCrypto        = "CRYPTO"
	LabelMedicalLic    = "MEDICAL_LICENSE"
)

// dateLayouts are tried in order when re-rendering a shifted date in the
// original's format. Zero-padded variants come before lenient ones.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
}

// Generator creates deterministic synthetic values. The zero value is ready
// to use; it carries no state between calls.
type Generator struct{}

// New returns a Generator.
func New() *Generator { return &Generator{} }

// Generate returns a synthetic value for (label, original). DATE_TIME
// values are shifted by dateOffsetDays and re-rendered in the original's
// layout when it parses; everything else is drawn from a faker seeded by
// the inputs. retrySalt perturbs the seed for collision retries.
func (g *Generator) Generate(label, original string, dateOffsetDays, retrySalt int) string {
	if label == LabelDateTime && retrySalt == 0 {
		if shifted, ok := shiftDate(original, dateOffsetDays); ok {
			return shifted
		}
	}

	f := gofakeit.New(seed(label, original, retrySalt))

	switch label {
	case LabelPerson:
		return f.Name()
	case LabelEmail:
		return f.Email()
	case LabelPhone:
		return f.PhoneFormatted()
	case LabelCreditCard:
		return f.CreditCardNumber(nil)
	case LabelSSN:
		return f.SSN()
	case LabelPassport:
		return strings.ToUpper(f.LetterN(2)) + f.DigitN(7)
	case LabelDriverLicense:
		return "DL-" + f.DigitN(8)
	case LabelIPAddress:
		return f.IPv4Address()
	case LabelLocation:
		return f.City()
	case LabelOrganization:
		return f.Company()
	case LabelDateTime:
		// Unparseable original, or a rare shifted-date collision retry:
		// fall back to a deterministic synthetic date.
		return f.Date().Format("2006-01-02")
	case LabelURL:
		return f.URL()
	case LabelBankNumber:
		return f.AchAccount()
	case LabelCrypto:
		return f.BitcoinAddress()
	case LabelMedicalLic:
		return "MD-" + f.DigitN(7)
	}

	// Unknown label: a tagged token. Restoration treats leftover tokens of
	// this shape as a vault/text mismatch.
	return fmt.Sprintf("[REDACTED_%s_%08x]", strings.ToUpper(label), seed(label, original, retrySalt)&0xffffffff)
}

// shiftDate parses original against the known layouts and, on success,
// re-renders it shifted by offsetDays in the same layout.
func shiftDate(original string, offsetDays int) (string, bool) {
	value := strings.TrimSpace(original)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		return t.AddDate(0, 0, offsetDays).Format(layout), true
	}
	return "", false
}

// seed hashes the generation inputs into a faker seed (FNV-1a).
func seed(label, original string, salt int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(label))
	h.Write([]byte{'|'})
	h.Write([]byte(original))
	h.Write([]byte{'|'})
	h.Write([]byte(fmt.Sprintf("%d", salt)))
	return h.Sum64()
}
