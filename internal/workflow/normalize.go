package workflow

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold strips accents, lowercases and trims s, so "Contratacao" and
// " contratação " compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, _ := transform.String(t, s)
	return strings.ToLower(strings.TrimSpace(folded))
}

func canonical(s string, valid []string) (string, bool) {
	f := fold(s)
	for _, v := range valid {
		if fold(v) == f {
			return v, true
		}
	}
	return s, false
}

// CanonicalTipoPedido maps an accent- or case-variant spelling to the
// canonical request type. Unknown values are returned unchanged.
func CanonicalTipoPedido(s string) (TipoPedido, bool) {
	valid := make([]string, len(TiposPedido))
	for i, t := range TiposPedido {
		valid[i] = string(t)
	}
	c, ok := canonical(s, valid)
	return TipoPedido(c), ok
}

// CanonicalRemetente maps a spelling variant to the canonical origin.
func CanonicalRemetente(s string) (string, bool) {
	return canonical(s, Remetentes)
}

// NormalizeCPF strips punctuation from a CPF.
func NormalizeCPF(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF checks length and both check digits.
func ValidCPF(s string) bool {
	cpf := NormalizeCPF(s)
	if len(cpf) != 11 {
		return false
	}
	same := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			same = false
			break
		}
	}
	if same {
		return false
	}

	digit := func(n int) byte {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(cpf[i]-'0') * (n + 1 - i)
		}
		d := (sum * 10) % 11
		if d == 10 {
			d = 0
		}
		return byte(d) + '0'
	}
	return digit(9) == cpf[9] && digit(10) == cpf[10]
}
