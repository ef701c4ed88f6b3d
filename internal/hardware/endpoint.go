// Package hardware defines the contracts a concrete transport driver
// (BLE, HID, USB, serial, XInput...) must satisfy to be usable by the
// device manager and per-device task, plus the symbolic addressing and
// bounded event-delivery types shared by all of them (spec §4.4, §6).
package hardware

import "fmt"

// Endpoint is a symbolic, transport-independent channel identifier. A
// concrete Hardware implementation resolves each Endpoint it claims to
// support to a transport-native handle (a BLE characteristic, a HID
// report id, a serial sub-channel...).
type Endpoint string

const (
	EndpointTx           Endpoint = "Tx"
	EndpointRx           Endpoint = "Rx"
	EndpointCommand      Endpoint = "Command"
	EndpointTxMode       Endpoint = "TxMode"
	EndpointTxVibrate    Endpoint = "TxVibrate"
	EndpointTxShock      Endpoint = "TxShock"
	EndpointRxBLEBattery Endpoint = "RxBLEBattery"
	EndpointRxBLEModel   Endpoint = "RxBLEModel"
	EndpointWhitelist    Endpoint = "Whitelist"
	EndpointFirmware     Endpoint = "Firmware"
)

// GenericEndpoint returns the symbolic Generic<n> endpoint, n in [0,31],
// part of the closed endpoint set (spec §6).
func GenericEndpoint(n int) (Endpoint, error) {
	if n < 0 || n > 31 {
		return "", fmt.Errorf("generic endpoint index %d out of range [0,31]", n)
	}
	return Endpoint(fmt.Sprintf("Generic%d", n)), nil
}
