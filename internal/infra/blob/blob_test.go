package blob

import (
	"context"
	"testing"

	"safetynet/internal/infra/blob/core"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if st.Driver() != core.DriverFilesystem {
		t.Fatalf("expected fs default, got %s", st.Driver())
	}
	st, err = Open(ctx, Config{Driver: core.DriverMemory})
	if err != nil || st.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver, got %v %v", st, err)
	}
	if _, err := Open(ctx, Config{Driver: core.DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
