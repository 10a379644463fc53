package max31723

import "fmt"

// Register is a 7-bit register address. Bit 7 of the address byte on the wire
// is the direction flag and is set or cleared by the transactor.
type Register uint8

// WriteBit marks a write in the address byte.
const WriteBit = 0x80

// Dummy is clocked out while the device drives the register value.
const Dummy = 0xFF

// MaxRegister is the highest address of the 7-bit register space.
const MaxRegister Register = 0x7F

// Register map.
const (
	RegConfig   Register = 0x00 // Configuration/Status
	RegTempLSB  Register = 0x01
	RegTempMSB  Register = 0x02
	RegTHighLSB Register = 0x03
	RegTHighMSB Register = 0x04
	RegTLowLSB  Register = 0x05
	RegTLowMSB  Register = 0x06
)

// Resolution bits of the configuration register.
const (
	Res9Bits  byte = 0
	Res10Bits byte = 0x1 << 1
	Res11Bits byte = 0x2 << 1
	Res12Bits byte = 0x3 << 1
)

var registerNames = map[Register]string{
	RegConfig:   "CONFIG",
	RegTempLSB:  "TEMP_LSB",
	RegTempMSB:  "TEMP_MSB",
	RegTHighLSB: "THIGH_LSB",
	RegTHighMSB: "THIGH_MSB",
	RegTLowLSB:  "TLOW_LSB",
	RegTLowMSB:  "TLOW_MSB",
}

// Name returns the datasheet name of the register, or "" if it has none.
func (r Register) Name() string {
	return registerNames[r&MaxRegister]
}

func (r Register) String() string {
	if name := r.Name(); name != "" {
		return fmt.Sprintf("0x%02X(%s)", uint8(r), name)
	}
	return fmt.Sprintf("0x%02X", uint8(r))
}
