package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
	assert.Equal(t, "", NormalizeName("."))
}

func TestNormalizeName_Equivalents(t *testing.T) {
	want := NormalizeName("foo inc")
	assert.Equal(t, "foo inc", want)
	assert.Equal(t, want, NormalizeName("Foo, Inc."))
	assert.Equal(t, want, NormalizeName("Foo Inc"))
	assert.Equal(t, want, NormalizeName("FOO INCORPORATED"))
	assert.Equal(t, want, NormalizeName("  The   Foo Inc. "))
}

func TestNormalizeName_Suffixes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp.", "acme corp"},
		{"Acme Corporation", "acme corp"},
		{"Acme Holdings L.L.C.", "acme holdings llc"},
		{"Acme Holdings, LLC", "acme holdings llc"},
		{"Acme Ltd", "acme ltd"},
		{"Acme Limited", "acme ltd"},
		{"Ford Motor Company", "ford motor co"},
		{"Ford Motor Co.", "ford motor co"},
		{"Energy Transfer L.P.", "energy transfer lp"},
		{"Vodafone Group Public P.L.C.", "vodafone group public plc"},
		{"Koninklijke Philips N.V.", "koninklijke philips nv"},
		{"Banco Santander, S.A.", "banco santander sa"},
		{"Siemens GmbH", "siemens gmbh"},
		{"Costco Wholesale", "costco wholesale"},
		{"Foo Co., Inc.", "foo co inc"},
		{"Foo Co Inc", "foo co inc"},
		{"Foo Company Limited", "foo co ltd"},
		{"Foo Co. Ltd.", "foo co ltd"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeName_FoldsAccents(t *testing.T) {
	assert.Equal(t, NormalizeName("Societe Generale S.A."), NormalizeName("Société Générale SA"))
}

func TestNormalizeName_Ampersand(t *testing.T) {
	assert.Equal(t, "johnson and johnson", NormalizeName("Johnson & Johnson"))
}

func TestNormalizeName_Idempotent(t *testing.T) {
	inputs := []string{
		"Foo, Inc.", "The The Foo Corp.", "Acme Holdings L.L.C.", "Banco Santander, S.A.",
		"Inc.", "the", "A & B Company", "Société Générale", "  x  ", "Foo Co., Inc.",
	}
	for _, in := range inputs {
		once := NormalizeName(in)
		assert.Equal(t, once, NormalizeName(once), "input %q", in)
	}
}

func TestSignificantWords(t *testing.T) {
	assert.Equal(t, []string{"apple"}, SignificantWords("Apple Inc."))
	assert.Equal(t, []string{"bank", "america"}, SignificantWords("The Bank of America Corporation"))
	assert.Nil(t, SignificantWords(""))
}

func TestNamesMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Foo, Inc.", "foo inc", true},
		{"Acme Widgets Holdings LLC", "Acme Widgets Corp.", true},
		{"Acme Widgets", "Acme Gadgets", false},
		{"Apple Inc.", "Apple", true},
		{"Apple Inc.", "Apple Bank", false},
		{"", "Apple", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, NamesMatch(tt.a, tt.b))
		})
	}
}
