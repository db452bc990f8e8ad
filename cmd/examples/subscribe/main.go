// Command subscribe discovers a device by instance number, then subscribes
// to Change-of-Value notifications for one of its objects and prints every
// notification received. Uses the client facade and a confirmed-request
// server to receive inbound COV notifications.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/client"
	"github.com/bacgo/bacnet/network"
	"github.com/bacgo/bacnet/service"
	"github.com/bacgo/bacnet/transport/bacip"
	"github.com/bacgo/bacnet/tsm"
)

func main() {
	if len(os.Args) != 5 {
		log.Fatalf("Usage: %s <interface> <device-id> <object-type> <object-instance>", os.Args[0])
	}
	ifaceName := os.Args[1]
	deviceInstance, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("invalid device-id: %v", err)
	}
	objectType, err := strconv.Atoi(os.Args[3])
	if err != nil {
		log.Fatalf("invalid object-type: %v", err)
	}
	objectInstance, err := strconv.Atoi(os.Args[4])
	if err != nil {
		log.Fatalf("invalid object-instance: %v", err)
	}

	port, broadcastAddr, err := bindInterface(ifaceName)
	if err != nil {
		log.Fatalf("failed to bind interface %s: %v", ifaceName, err)
	}
	port.SetBroadcastAddr(broadcastAddr)

	net := network.New(port)
	c := client.New(net, 5*time.Second, 3)

	// A server TSM answers the inbound Confirmed-COV-Notification the
	// subscribed device sends when IssueConfirmedNotifications is true.
	tsm.NewServer(net, func(source bactypes.Address, serviceChoice byte, serviceData []byte) tsm.Response {
		if serviceChoice == service.ServiceConfirmedCOVNotification {
			printNotification(serviceData)
			return tsm.Response{Kind: tsm.RespSimpleAck, ServiceChoice: serviceChoice}
		}
		return tsm.Response{Kind: tsm.RespSimpleAck, ServiceChoice: serviceChoice}
	}, time.Minute)

	discoverCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := port.Start(context.Background()); err != nil {
		log.Fatalf("failed to start port: %v", err)
	}
	defer port.Stop(context.Background())

	var target *bactypes.Address
	c.WhoIs(discoverCtx, nil, nil, func(device bactypes.ObjectID, maxAPDU, seg, vendor uint32, source bactypes.Address) {
		if device.Instance == uint32(deviceInstance) {
			addr := source
			target = &addr
		}
	})
	if target == nil {
		log.Fatalf("device %d not found", deviceInstance)
	}
	fmt.Printf("found device %d at %s\n", deviceInstance, target)

	monitored := bactypes.ObjectID{Type: bactypes.ObjectType(objectType), Instance: uint32(objectInstance)}
	ctx, subCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer subCancel()
	if err := c.SubscribeCOV(ctx, *target, 123, monitored, true, 60); err != nil {
		log.Fatalf("SubscribeCOV failed: %v", err)
	}

	fmt.Println("Subscribed. Waiting for COV notifications (unconfirmed are delivered via network.OnReceive in a real app; here we simply sleep to demonstrate a confirmed subscription's inbound path)...")
	time.Sleep(60 * time.Second)
}

func printNotification(serviceData []byte) {
	notif, err := service.DecodeCOVNotificationRequest(serviceData)
	if err != nil {
		log.Printf("failed to parse COV notification: %v", err)
		return
	}
	fmt.Printf("COV notification: process=%d monitored=%s time-remaining=%ds\n", notif.ProcessID, notif.MonitoredObjectID, notif.TimeRemaining)
	for prop, value := range notif.Values {
		fmt.Printf("  property %d = %v\n", prop, value)
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
