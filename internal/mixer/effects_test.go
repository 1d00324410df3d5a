package mixer

import "testing"

func TestParseEffectSpec(t *testing.T) {
	e, err := ParseEffectSpec("$verb:reverb:0.5:120")
	if err != nil {
		t.Fatalf("ParseEffectSpec: %v", err)
	}
	if e.ID != "verb" || e.Type != EffectReverb {
		t.Fatalf("parsed = %+v", e)
	}
	if len(e.Params) != 2 || e.Params[0] != 0.5 || e.Params[1] != 120 {
		t.Fatalf("params = %v", e.Params)
	}
}

func TestParseEffectSpecNoID(t *testing.T) {
	e, err := ParseEffectSpec("echo:0.3")
	if err != nil {
		t.Fatalf("ParseEffectSpec: %v", err)
	}
	if e.ID != "" || e.Type != EffectEcho {
		t.Fatalf("parsed = %+v", e)
	}
}

func TestParseEffectSpecUnknownType(t *testing.T) {
	if _, err := ParseEffectSpec("flanger:1"); err == nil {
		t.Fatal("expected error for unknown effect type")
	}
}

func TestSpecIsIDOnly(t *testing.T) {
	id, ok := specIsIDOnly("$verb")
	if !ok || id != "verb" {
		t.Fatalf("specIsIDOnly($verb) = %q, %v", id, ok)
	}
	if _, ok := specIsIDOnly("$verb:reverb"); ok {
		t.Fatal("specIsIDOnly should reject a spec with a keyword")
	}
	if _, ok := specIsIDOnly("reverb:1"); ok {
		t.Fatal("specIsIDOnly should reject a spec with no $ prefix")
	}
}
