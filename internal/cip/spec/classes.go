package spec

// CIP object class codes.
const (
	CIPClassIdentity          uint16 = 0x0001
	CIPClassMessageRouter     uint16 = 0x0002
	CIPClassAssembly          uint16 = 0x0004
	CIPClassConnectionManager uint16 = 0x0006
	CIPClassPort              uint16 = 0x00F4
	CIPClassTCPIPInterface    uint16 = 0x00F5
	CIPClassEthernetLink      uint16 = 0x00F6
	CIPClassSymbolObject      uint16 = 0x006B
	CIPClassTemplateObject    uint16 = 0x006C
)

// Backplane port number used in route path port segments.
const BackplanePort uint8 = 0x01

var cipClassNames = map[uint16]string{
	CIPClassIdentity:          "Identity",
	CIPClassMessageRouter:     "Message_Router",
	CIPClassAssembly:          "Assembly",
	CIPClassConnectionManager: "Connection_Manager",
	CIPClassPort:              "Port",
	CIPClassTCPIPInterface:    "TCP_IP_Interface",
	CIPClassEthernetLink:      "Ethernet_Link",
	CIPClassSymbolObject:      "Symbol",
	CIPClassTemplateObject:    "Template",
}
