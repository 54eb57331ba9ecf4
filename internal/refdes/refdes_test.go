package refdes

import "testing"

func TestParseAndString(t *testing.T) {
	rd, err := Parse("GA03FLMA-RIM01-02-CTDMOG000")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rd.Subsite != "GA03FLMA" || rd.Node != "RIM01" || rd.Sensor != "02-CTDMOG000" {
		t.Fatalf("unexpected parts: %+v", rd)
	}
	if got := rd.String(); got != "GA03FLMA-RIM01-02-CTDMOG000" {
		t.Fatalf("String() = %q", got)
	}
	purge := rd.PurgeRequest()
	if purge.Subsite != "GA03FLMA" || purge.Node != "RIM01" || purge.Sensor != "02-CTDMOG000" {
		t.Fatalf("unexpected purge request: %+v", purge)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, value := range []string{"", "CE01ISSM", "CE01ISSM-MFD35", "-MFD35-04-ADCPTM000", "CE01ISSM--04"} {
		if _, err := Parse(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}
}

func TestClassifyWildcardAllowList(t *testing.T) {
	c := DefaultClassifier()
	for _, rd := range DefaultWildcardRefDes {
		got := c.Classify(rd)
		if !got.WildcardDecoder || got.Excluded {
			t.Fatalf("Classify(%s) = %+v, want wildcard and not excluded", rd, got)
		}
		if RefDesFinal(got.WildcardDecoder) != "false" {
			t.Fatalf("refDesFinal for %s should be false", rd)
		}
	}

	for _, rd := range []string{"GA03FLMA-RIM01-02-CTDMOG001", "GA03FLMA-RIM01-02-CTDMOG00", "CE01ISSM-MFD35-04-ADCPTM000"} {
		got := c.Classify(rd)
		if got.WildcardDecoder {
			t.Fatalf("Classify(%s) should not enable the wildcard decoder", rd)
		}
		if RefDesFinal(got.WildcardDecoder) != "true" {
			t.Fatalf("refDesFinal for %s should be true", rd)
		}
	}
}

func TestClassifyExclusionsArePrefixes(t *testing.T) {
	c := DefaultClassifier()
	cases := map[string]bool{
		"CE02SHBP-LJ01D-06-CTDBPN106": true,
		"RS01SBPS-PC01A-4A-CTDPFA103": true,
		"CE04OSPS-SF01B-2A-CTDPFA107": true,
		"CE02SHSM-RID27-03-CTDBPC000": false,
		"GA01SUMO-RII11-02-CTDMOQ011": false,
	}
	for rd, want := range cases {
		if got := c.Classify(rd).Excluded; got != want {
			t.Fatalf("Classify(%s).Excluded = %v, want %v", rd, got, want)
		}
	}
}

func TestNewClassifierIgnoresBlankEntries(t *testing.T) {
	c := NewClassifier([]string{" ", "CE02SHBP"}, []string{"", " X-Y-Z "})
	if c.Classify("ANYTHING-A-B").Excluded {
		t.Fatalf("blank exclusion must not match everything")
	}
	if !c.Classify("X-Y-Z").WildcardDecoder {
		t.Fatalf("trimmed wildcard entry should match")
	}
	if len(c.Exclusions()) != 1 {
		t.Fatalf("Exclusions() = %v", c.Exclusions())
	}
}
