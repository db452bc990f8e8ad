// Command discover broadcasts Who-Is on a BACnet/IP interface and prints
// every I-Am it receives for a few seconds, then walks each device's
// Object_List, using the client facade.
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
		if _, ok := found[device.Instance]; ok {
			return
		}
		found[device.Instance] = source
		fmt.Printf("Device %d at %s (vendor %d)\n", device.Instance, source, vendor)
	})

	for instance, addr := range found {
		deviceID := bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: instance}
		objs, err := c.GetObjectList(context.Background(), addr, deviceID)
		if err != nil {
			log.Printf("  failed to get object list for device %d: %v", instance, err)
			continue
		}
		fmt.Printf("  device %d has %d objects\n", instance, len(objs))
		for _, o := range objs {
			fmt.Printf("    - %s\n", o.String())
		}
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
