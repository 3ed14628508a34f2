package msgtype

import "testing"

func TestAllOrder(t *testing.T) {
	for i, typ := range All {
		if int(typ) != i {
			t.Errorf("All[%d] = %v, want tag value %d", i, typ, i)
		}
	}
	if len(All) != 14 {
		t.Errorf("len(All) = %d, want 14", len(All))
	}
}

func TestValid(t *testing.T) {
	if !HANDSHAKE.Valid() {
		t.Error("HANDSHAKE should be valid")
	}
	if Type(200).Valid() {
		t.Error("tag 200 should not be valid")
	}
}
