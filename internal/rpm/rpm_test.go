package rpm

import "testing"

func TestSortNEVRAOrdersByNameThenEpochVersionReleaseArch(t *testing.T) {
	packages := []Package{
		{Name: "zlib", Version: "1.2", Release: "1", Arch: "x86_64"},
		{Name: "bash", Version: "5.1", Release: "4", Arch: "x86_64"},
		{Name: "bash", Version: "5.1", Release: "2", Arch: "x86_64"},
		{Name: "bash", Epoch: 1, Version: "5.1", Release: "1", Arch: "x86_64"},
	}
	SortNEVRA(packages)

	want := []string{"bash-5.1-2", "bash-5.1-4", "bash(epoch1)-5.1-1", "zlib-1.2-1"}
	got := make([]string, len(packages))
	for i, p := range packages {
		name := p.Name
		if p.Epoch != 0 {
			name += "(epoch1)"
		}
		got[i] = name + "-" + p.Version + "-" + p.Release
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortNEVRA order = %v, want %v", got, want)
		}
	}
}

func TestDedupeKeepsFirstOccurrenceRole(t *testing.T) {
	packages := []Package{
		{Name: "bash", Version: "5.1", Release: "1", Arch: "x86_64", Role: RoleAffected},
		{Name: "bash", Version: "5.1", Release: "1", Arch: "x86_64", Role: RoleUnknown},
		{Name: "coreutils", Version: "9.0", Release: "1", Arch: "x86_64", Role: RoleUnknown},
	}
	got := Dedupe(packages)
	if len(got) != 2 {
		t.Fatalf("Dedupe returned %d packages, want 2: %+v", len(got), got)
	}
	if got[0].Name != "bash" || got[0].Role != RoleAffected {
		t.Errorf("first occurrence's role did not win: %+v", got[0])
	}
}

func TestDedupeEmpty(t *testing.T) {
	if got := Dedupe(nil); got != nil {
		t.Errorf("Dedupe(nil) = %v, want nil", got)
	}
}

func TestRoleString(t *testing.T) {
	if RoleAffected.String() != "affected" {
		t.Errorf("RoleAffected.String() = %q", RoleAffected.String())
	}
	if RoleUnknown.String() != "unknown" {
		t.Errorf("RoleUnknown.String() = %q", RoleUnknown.String())
	}
}
