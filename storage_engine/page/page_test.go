package page

import "testing"

func TestNewFrameIsInvalidAndZeroed(t *testing.T) {
	f := NewFrame()
	if f.ID != Invalid {
		t.Fatalf("expected new frame to have Invalid id, got %d", f.ID)
	}
	if len(f.Data) != Size {
		t.Fatalf("expected frame data of length %d, got %d", Size, len(f.Data))
	}
	for i, b := range f.Data {
		if b != 0 {
			t.Fatalf("expected zeroed data, byte %d = %x", i, b)
		}
	}
}

func TestResetClearsMetadataAndData(t *testing.T) {
	f := NewFrame()
	f.ID = 5
	f.PinCount = 3
	f.IsDirty = true
	f.Data[0] = 0xFF

	f.Reset()

	if f.ID != Invalid {
		t.Fatalf("expected Reset to clear ID, got %d", f.ID)
	}
	if f.PinCount != 0 {
		t.Fatalf("expected Reset to clear PinCount, got %d", f.PinCount)
	}
	if f.IsDirty {
		t.Fatalf("expected Reset to clear IsDirty")
	}
	if f.Data[0] != 0 {
		t.Fatalf("expected Reset to zero Data")
	}
}
