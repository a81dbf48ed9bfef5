package spec

import "fmt"

var cipServiceNames = map[ServiceCode]string{
	0x01: "Get_Attribute_All",
	0x02: "Set_Attribute_All",
	0x03: "Get_Attribute_List",
	0x04: "Set_Attribute_List",
	0x05: "Reset",
	0x0A: "Multiple_Service_Packet",
	0x0E: "Get_Attribute_Single",
	0x10: "Set_Attribute_Single",
	0x4C: "Read_Tag",
	0x4D: "Write_Tag",
	0x4E: "Read_Modify_Write",
	0x52: "Unconnected_Send",
	0x53: "Write_Tag_Fragmented",
	0x54: "Forward_Open",
}

// ServiceName returns a default display name for a CIP service code.
func ServiceName(code ServiceCode) string {
	if name, ok := cipServiceNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint8(code))
}

// IsKnownService returns true when a service code is recognized.
func IsKnownService(code ServiceCode) bool {
	_, ok := cipServiceNames[code.Request()]
	return ok
}

// ClassName returns a display name for a CIP object class.
func ClassName(class uint16) string {
	if name, ok := cipClassNames[class]; ok {
		return name
	}
	return fmt.Sprintf("Class(0x%04X)", class)
}
