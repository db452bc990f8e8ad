// Command readspecific discovers devices and reads a couple of specific
// properties off one of each device's objects, using the client facade's
// single-property ReadProperty (this example reads one property at a time
// rather than batching them through the facade's ReadMultiple).
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/client"
	"github.com/bacgo/bacnet/network"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/transport/bacip"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s <interface>", os.Args[0])
	}
	ifaceName := os.Args[1]

	port, broadcastAddr, err := bindInterface(ifaceName)
	if err != nil {
		log.Fatalf("failed to bind interface %s: %v", ifaceName, err)
	}
	port.SetBroadcastAddr(broadcastAddr)

	net := network.New(port)
	c := client.New(net, 5*time.Second, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := port.Start(ctx); err != nil {
		log.Fatalf("failed to start port: %v", err)
	}
	defer port.Stop(context.Background())

	fmt.Println("Performing Who-Is broadcast...")
	found := make(map[uint32]bactypes.Address)
	c.WhoIs(ctx, nil, nil, func(device bactypes.ObjectID, maxAPDU, seg, vendor uint32, source bactypes.Address) {
		found[device.Instance] = source
	})

	specificObject := bactypes.ObjectID{Type: bactypes.ObjectAnalogInput, Instance: 3}
	for instance, addr := range found {
		fmt.Printf("----------------------------------------\ndevice %d at %s\n", instance, addr)

		reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
		name, err := c.ReadProperty(reqCtx, addr, specificObject, object.PropObjectName, nil)
		if err != nil {
			log.Printf("  failed to read object name: %v", err)
			reqCancel()
			continue
		}
		value, err := c.ReadProperty(reqCtx, addr, specificObject, object.PropPresentValue, nil)
		reqCancel()
		if err != nil {
			log.Printf("  failed to read present value: %v", err)
			continue
		}
		fmt.Printf("  analog-input:3 object-name=%v present-value=%v\n", name, value)
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
