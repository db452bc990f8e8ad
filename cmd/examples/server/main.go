// Command server runs a minimal BACnet device on a BACnet/IP interface:
// one Device object, one commandable Analog Output, one Binary Value, and
// a Trend Log polling the analog output every 10 seconds. Demonstrates the
// app package's wiring end to end.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bacgo/bacnet/app"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/transport/bacip"
	"github.com/bacgo/bacnet/trendlog"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatalf("Usage: %s <interface> <device-instance>", os.Args[0])
	}
	ifaceName := os.Args[1]
	deviceInstance, err := strconv.ParseUint(os.Args[2], 10, 32)
	if err != nil {
		log.Fatalf("invalid device-instance: %v", err)
	}

	port, broadcastAddr, err := bindInterface(ifaceName)
	if err != nil {
		log.Fatalf("failed to bind interface %s: %v", ifaceName, err)
	}
	port.SetBroadcastAddr(broadcastAddr)

	cfg := app.DeviceConfig{
		DeviceID:         bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: uint32(deviceInstance)},
		Name:             "bacgo-demo-device",
		VendorName:       "bacgo",
		VendorID:         9999,
		FirmwareRevision: "1.0",
		APDUTimeout:      5 * time.Second,
		APDURetries:      3,
		SegmentWindow:    8,
	}
	application := app.New(cfg, port)

	ao := object.NewAnalogOutput(bactypes.ObjectID{Type: bactypes.ObjectAnalogOutput, Instance: 1}, "ao-1", object.UnitsPercent, bactypes.Real(0))
	if err := application.Database().Add(ao); err != nil {
		log.Fatalf("failed to add analog output: %v", err)
	}

	bv := object.NewBinaryValue(bactypes.ObjectID{Type: bactypes.ObjectBinaryValue, Instance: 1}, "bv-1")
	if err := application.Database().Add(bv); err != nil {
		log.Fatalf("failed to add binary value: %v", err)
	}

	tl := trendlog.New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, application.Database(), ao.ID(), object.PropPresentValue, 1000)
	tl.Type = trendlog.LoggingPolled
	tl.Interval = 10 * time.Second
	application.TrendLogs().Register(tl)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	fmt.Println("Device running. Press Ctrl+C to stop.")
	if err := application.Start(ctx); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

func bindInterface(ifaceName string) (*bacip.Port, *net.UDPAddr, error) {
	intf, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, nil, err
	}
	addrs, err := intf.Addrs()
	if err != nil {
		return nil, nil, err
	}

	var localIP net.IP
	var broadcastIP net.IP
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				localIP = ip4
				mask := ipnet.Mask
				broadcastIP = make(net.IP, len(ip4))
				for i := range ip4 {
					broadcastIP[i] = ip4[i] | ^mask[i]
				}
				break
			}
		}
	}
	if localIP == nil {
		return nil, nil, fmt.Errorf("no suitable IPv4 address on interface %s", ifaceName)
	}

	port, err := bacip.New(fmt.Sprintf(":%d", bacip.DefaultPort))
	if err != nil {
		return nil, nil, err
	}
	port.SetLocalMac(localIP, bacip.DefaultPort)
	return port, &net.UDPAddr{IP: broadcastIP, Port: bacip.DefaultPort}, nil
}
