package intelligence

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/veilscan/veilscan/pkg/models"
	"github.com/veilscan/veilscan/pkg/utils"
)

// ExpandIdentifiers widens the search surface before providers are queried:
// diacritics-stripped name forms, common name orderings, and usernames
// derived from email local parts. Broker sites index the same person under
// several of these forms.
func ExpandIdentifiers(ids models.SearchIdentifiers) models.SearchIdentifiers {
	out := models.SearchIdentifiers{
		FullName:  ids.FullName,
		Emails:    normalizeAll(ids.Emails),
		Phones:    normalizePhones(ids.Phones),
		Usernames: normalizeAll(ids.Usernames),
		Addresses: normalizeAll(ids.Addresses),
	}

	for _, email := range out.Emails {
		if local := emailLocalPart(email); local != "" && len(local) >= 4 {
			out.Usernames = append(out.Usernames, local)
		}
	}

	// Brokers index the ASCII spelling, so the folded form wins.
	if folded := foldDiacritics(ids.FullName); folded != "" {
		out.FullName = folded
	}

	out.Usernames = utils.UniqueStrings(out.Usernames)
	out.Emails = utils.UniqueStrings(out.Emails)
	out.Phones = utils.UniqueStrings(out.Phones)
	out.Addresses = utils.UniqueStrings(out.Addresses)
	return out
}

// NameForms returns the orderings of a full name that people-search sites
// index: "First Last", "Last, First", "First M Last" collapsed to
// "First Last".
func NameForms(fullName string) []string {
	fullName = strings.TrimSpace(foldDiacritics(fullName))
	if fullName == "" {
		return nil
	}

	parts := strings.Fields(fullName)
	forms := []string{fullName}
	if len(parts) >= 2 {
		first, last := parts[0], parts[len(parts)-1]
		forms = append(forms,
			first+" "+last,
			last+", "+first,
		)
	}
	return utils.UniqueStrings(forms)
}

// foldDiacritics strips combining marks so "José Muñoz" matches listings
// indexed as "Jose Munoz".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return utils.UniqueStrings(out)
}

// normalizePhones keeps digits only, preserving a leading plus.
func normalizePhones(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		var b strings.Builder
		for i, r := range p {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			} else if r == '+' && i == 0 {
				b.WriteRune(r)
			}
		}
		if digits := b.String(); len(strings.TrimPrefix(digits, "+")) >= 7 {
			out = append(out, digits)
		}
	}
	return utils.UniqueStrings(out)
}

func emailLocalPart(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return ""
	}
	local := email[:at]
	// Strip plus-addressing; "jordan+spam@x.com" is the jordan account.
	if plus := strings.IndexByte(local, '+'); plus > 0 {
		local = local[:plus]
	}
	return strings.ToLower(local)
}
