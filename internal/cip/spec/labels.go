package spec

import "fmt"

// LabelService returns a contextual label for a service code.
// Context is required because 0x4C..0x52 are object specific: the same code
// means different things on the Connection Manager, Symbol and Template objects.
func LabelService(service uint8, class uint16, isResponse bool) (string, bool) {
	code := ServiceCode(service).Request()
	baseName := ServiceName(code)
	unknownLabel := fmt.Sprintf("Unknown(0x%02X)", uint8(code))

	switch code {
	case 0x4C:
		if class == CIPClassTemplateObject {
			baseName = "Template_Read"
		}
	case 0x4E:
		if class == CIPClassConnectionManager {
			baseName = "Forward_Close"
		}
	case 0x52:
		switch {
		case class == CIPClassConnectionManager:
			baseName = "Unconnected_Send"
		case class == CIPClassSymbolObject || class == CIPClassTemplateObject:
			baseName = "Read_Tag_Fragmented"
		case class != 0:
			baseName = unknownLabel
		}
	case 0x54:
		if class != 0 && class != CIPClassConnectionManager {
			baseName = unknownLabel
		}
	}

	if isResponse {
		baseName += "_Response"
	}
	return baseName, !IsUnknownServiceLabel(baseName)
}

// IsUnknownServiceLabel reports if the label is an Unknown placeholder.
func IsUnknownServiceLabel(label string) bool {
	return len(label) >= 8 && label[:7] == "Unknown"
}
