package diskspace

import "testing"

func TestHasHeadroomAppliesMinimumMargin(t *testing.T) {
	c := &Check{AvailableBytes: 100 << 20} // 100MiB
	if !c.HasHeadroom(10 << 20) {
		t.Error("expected 100MiB available to cover a 10MiB request plus the 64MiB floor margin")
	}
	if c.HasHeadroom(50 << 20) {
		t.Error("expected 100MiB available to reject a 50MiB request once the 64MiB floor margin is added")
	}
}

func TestHasHeadroomUsesProportionalMarginAboveFloor(t *testing.T) {
	c := &Check{AvailableBytes: 1100 << 20} // 1100MiB
	// 1000MiB request + 100MiB (10%) margin = 1100MiB exactly.
	if !c.HasHeadroom(1000 << 20) {
		t.Error("expected exact-fit headroom to pass")
	}
	if c.HasHeadroom(1001 << 20) {
		t.Error("expected a request whose margin pushes past availability to fail")
	}
}

func TestStatfsReportsCurrentFilesystem(t *testing.T) {
	check, err := Statfs(t.TempDir())
	if err != nil {
		t.Fatalf("Statfs: %v", err)
	}
	if check.TotalBytes == 0 {
		t.Error("expected a nonzero total size for the temp dir's filesystem")
	}
}
