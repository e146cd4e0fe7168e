package langmeta

import "testing"

func TestResolve_Known(t *testing.T) {
	m := Resolve("id")
	if m.Name != "Indonesian" || m.Native != "Bahasa Indonesia" {
		t.Errorf("Resolve(id) = %+v", m)
	}
}

func TestResolve_LocaleVariantFallsBack(t *testing.T) {
	if got := Resolve("pt-BR").Name; got != "Portuguese" {
		t.Errorf("Resolve(pt-BR) = %q", got)
	}
	if got := Resolve("pt_BR").Name; got != "Portuguese" {
		t.Errorf("Resolve(pt_BR) = %q", got)
	}
}

func TestResolve_Unknown(t *testing.T) {
	if got := Resolve("xx").Name; got != "xx" {
		t.Errorf("Resolve(xx) = %q", got)
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("de") {
		t.Error("de must be supported")
	}
	if !IsSupported("zh-TW") {
		t.Error("zh-TW must fall back to zh")
	}
	if IsSupported("tlh") {
		t.Error("tlh must not be supported")
	}
}

func TestSupported_AllHaveMetadata(t *testing.T) {
	for _, code := range Supported {
		if _, ok := Registry[code]; !ok {
			t.Errorf("supported code %s missing from registry", code)
		}
	}
}
