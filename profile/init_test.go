package profile

import "testing"

func TestMake_AppliesOptions(t *testing.T) {
	c := Make(WithMode("cpu"), WithPath("/tmp/p"), WithQuiet(true))

	mode, path, quiet := c()
	if mode != "cpu" || path != "/tmp/p" || !quiet {
		t.Errorf("Make() = (%q, %q, %v)", mode, path, quiet)
	}
}

func TestStart_NoModeIsNoop(t *testing.T) {
	p := Make(WithPath(t.TempDir())).Start()
	if _, ok := p.(ignore); !ok {
		t.Errorf("Start() without mode = %T, want ignore", p)
	}

	p.Stop()

	var nilConfig Config
	nilConfig.Start().Stop()
}
