package spec

import "testing"

func TestLabelServiceContextual(t *testing.T) {
	cases := []struct {
		service uint8
		class   uint16
		resp    bool
		want    string
	}{
		{0x52, CIPClassConnectionManager, false, "Unconnected_Send"},
		{0x52, CIPClassSymbolObject, false, "Read_Tag_Fragmented"},
		{0x4E, CIPClassConnectionManager, false, "Forward_Close"},
		{0x4C, CIPClassTemplateObject, false, "Template_Read"},
		{0x4C, 0, false, "Read_Tag"},
		{0x4D, 0, true, "Write_Tag_Response"},
		{0xD2, CIPClassConnectionManager, true, "Unconnected_Send_Response"},
	}

	for _, tc := range cases {
		name, ok := LabelService(tc.service, tc.class, tc.resp)
		if !ok {
			t.Fatalf("expected label for service 0x%02X", tc.service)
		}
		if name != tc.want {
			t.Fatalf("label mismatch for service 0x%02X: got %s want %s", tc.service, name, tc.want)
		}
	}
}

func TestLabelServiceUnknown(t *testing.T) {
	if _, ok := LabelService(0x52, CIPClassIdentity, false); ok {
		t.Fatal("0x52 on Identity should be unknown")
	}
	if _, ok := LabelService(0x7E, 0, false); ok {
		t.Fatal("0x7E should be unknown")
	}
}
