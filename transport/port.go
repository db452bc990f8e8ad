// Package transport defines the uniform port contract every BACnet datalink
// binding implements, independent of which concrete binding (BACnet/IP,
// BACnet/IPv6, BACnet/SC, Ethernet) is in use.
package transport

import "context"

// ReceiveFunc is invoked once per inbound NPDU with its raw bytes and the
// sender's datalink MAC.
type ReceiveFunc func(npdu []byte, sourceMac []byte)

// Port is the contract the Network layer (package network) drives. Every
// concrete datalink binding implements it.
type Port interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	SendUnicast(npdu []byte, mac []byte) error
	SendBroadcast(npdu []byte) error

	OnReceive(fn ReceiveFunc)

	LocalMac() []byte
	MaxNPDULength() int
}
