package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Bluetooth device address is 6 bytes. The upper 2 bytes of the uint64 are
// always zero and not printed.
func FormatBluetoothAddress(value uint64) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		byte(value>>40),
		byte(value>>32),
		byte(value>>24),
		byte(value>>16),
		byte(value>>8),
		byte(value))
}

// accepts both "112233445566" (plain hex) and "11:22:33:44:55:66"
func ParseBluetoothAddress(value string) (uint64, error) {
	if parsed, err := strconv.ParseUint(value, 16, 64); err == nil {
		return parsed, nil
	}

	pieces := strings.Split(value, ":")
	if len(pieces) != 6 {
		return 0, errors.New("given address is not 6 byte form")
	}

	parsed := uint64(0)
	for _, piece := range pieces {
		b, err := strconv.ParseUint(piece, 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid address byte: %s", piece)
		}

		parsed = (parsed << 8) | b
	}

	return parsed, nil
}
