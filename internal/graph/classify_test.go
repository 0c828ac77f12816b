package graph

import "testing"

func TestClassifyMediaClass(t *testing.T) {
	cases := []struct {
		class   string
		wantOK  bool
		wantKnd DeviceKind
	}{
		{"Audio/Source", true, KindInput},
		{"Audio/Source/Virtual", true, KindInput},
		{"Stream/Output/Audio", true, KindOutput},
		{"Audio/Sink", false, 0},
		{"Stream/Input/Audio", false, 0},
		{"Video/Source", false, 0},
		{"", false, 0},
	}

	for _, c := range cases {
		kind, ok := classifyMediaClass(c.class)
		if ok != c.wantOK {
			t.Errorf("classifyMediaClass(%q): ok=%v, want %v", c.class, ok, c.wantOK)
			continue
		}
		if ok && kind != c.wantKnd {
			t.Errorf("classifyMediaClass(%q): kind=%v, want %v", c.class, kind, c.wantKnd)
		}
	}
}

func TestResolveNick(t *testing.T) {
	cases := []struct {
		nick, description, name string
		want                    string
	}{
		{"Nice Name", "desc", "raw.name", "Nice Name"},
		{"", "Description", "raw.name", "Description"},
		{"", "", "raw.name", "raw.name"},
	}
	for _, c := range cases {
		if got := resolveNick(c.nick, c.description, c.name); got != c.want {
			t.Errorf("resolveNick(%q,%q,%q) = %q, want %q", c.nick, c.description, c.name, got, c.want)
		}
	}
}

// TestApplyPortNameExhaustive covers every port-name mapping in spec.md
// §4.A, including input_MONO/output_MONO expanding into both FL and FR.
func TestApplyPortNameExhaustive(t *testing.T) {
	cases := []struct {
		portName   string
		wantFields []string // which of {inFL,inFR,outFL,outFR} get set
	}{
		{"input_FL", []string{"inFL"}},
		{"input_FR", []string{"inFR"}},
		{"output_FL", []string{"outFL"}},
		{"capture_FL", []string{"outFL"}},
		{"output_FR", []string{"outFR"}},
		{"capture_FR", []string{"outFR"}},
		{"input_MONO", []string{"inFL", "inFR"}},
		{"output_MONO", []string{"outFL", "outFR"}},
		{"capture_MONO", []string{"outFL", "outFR"}},
	}

	for _, c := range cases {
		dev := &AudioDevice{}
		port := &Port{NodeID: 1, PortID: 2, Name: c.portName}
		if ok := applyPortName(dev, port); !ok {
			t.Errorf("applyPortName(%q): expected ok=true", c.portName)
			continue
		}
		got := map[string]bool{
			"inFL":  dev.InputFL == port,
			"inFR":  dev.InputFR == port,
			"outFL": dev.OutputFL == port,
			"outFR": dev.OutputFR == port,
		}
		want := map[string]bool{}
		for _, f := range c.wantFields {
			want[f] = true
		}
		for _, f := range []string{"inFL", "inFR", "outFL", "outFR"} {
			if got[f] != want[f] {
				t.Errorf("applyPortName(%q): field %s set=%v, want %v", c.portName, f, got[f], want[f])
			}
		}
	}
}

func TestApplyPortNameUnknownIgnored(t *testing.T) {
	dev := &AudioDevice{}
	if ok := applyPortName(dev, &Port{Name: "control_0"}); ok {
		t.Error("expected unknown port name to be ignored")
	}
}
