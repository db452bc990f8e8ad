// Package client provides the application-facing facade a BACnet client
// program drives: read/write/subscribe/discover operations built on top of
// tsm.Client and the service codecs, exposed as directly-callable methods
// over any network.Layer-backed transport.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bacgo/bacnet/apdu"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/network"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/service"
	"github.com/bacgo/bacnet/tsm"
)

// Client is the application-facing entry point for confirmed and
// unconfirmed requests to remote devices.
type Client struct {
	net *network.Layer
	tsm *tsm.Client

	mu           sync.Mutex
	nextListener int
	iamListeners map[int]DiscoverHandler
	ihaveListeners map[int]WhoHasHandler
}

// New builds a Client over net, with its own Transaction State Machine
// using apduTimeout/retries for every confirmed request.
func New(net *network.Layer, apduTimeout time.Duration, retries int) *Client {
	c := &Client{
		net:            net,
		tsm:            tsm.NewClient(net, apduTimeout, retries),
		iamListeners:   make(map[int]DiscoverHandler),
		ihaveListeners: make(map[int]WhoHasHandler),
	}
	net.OnReceive(c.handleUnconfirmed)
	return c
}

// handleUnconfirmed fans inbound I-Am and I-Have broadcasts out to the
// listeners an outstanding WhoIs/WhoHas registered.
func (c *Client) handleUnconfirmed(raw []byte, source bactypes.Address, expectingReply bool) {
	pduType, err := apdu.PDUType(raw)
	if err != nil || pduType != apdu.TypeUnconfirmedRequest {
		return
	}
	reqPDU, err := apdu.DecodeUnconfirmedRequest(raw)
	if err != nil {
		return
	}
	switch reqPDU.ServiceChoice {
	case service.ServiceIAm:
		iam, err := service.DecodeIAmRequest(reqPDU.ServiceData)
		if err != nil {
			return
		}
		c.mu.Lock()
		listeners := make([]DiscoverHandler, 0, len(c.iamListeners))
		for _, fn := range c.iamListeners {
			listeners = append(listeners, fn)
		}
		c.mu.Unlock()
		for _, fn := range listeners {
			fn(iam.DeviceID, iam.MaxAPDULength, iam.SegmentationSupported, iam.VendorID, source)
		}
	case service.ServiceIHave:
		ihave, err := service.DecodeIHaveRequest(reqPDU.ServiceData)
		if err != nil {
			return
		}
		c.mu.Lock()
		listeners := make([]WhoHasHandler, 0, len(c.ihaveListeners))
		for _, fn := range c.ihaveListeners {
			listeners = append(listeners, fn)
		}
		c.mu.Unlock()
		for _, fn := range listeners {
			fn(ihave.DeviceID, ihave.ObjectID, ihave.ObjectName, source)
		}
	}
}

func (c *Client) addIAmListener(fn DiscoverHandler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListener++
	c.iamListeners[c.nextListener] = fn
	return c.nextListener
}

func (c *Client) removeIAmListener(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.iamListeners, id)
}

func (c *Client) addIHaveListener(fn WhoHasHandler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListener++
	c.ihaveListeners[c.nextListener] = fn
	return c.nextListener
}

func (c *Client) removeIHaveListener(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ihaveListeners, id)
}

// ReadProperty issues a Confirmed-Read-Property request and returns the
// decoded value.
func (c *Client) ReadProperty(ctx context.Context, dest bactypes.Address, objectID bactypes.ObjectID, prop object.PropertyID, arrayIndex *uint32) (bactypes.Value, error) {
	req := service.ReadPropertyRequest{ObjectID: objectID, Property: prop, ArrayIndex: arrayIndex}
	res := c.tsm.Request(ctx, dest, service.ServiceReadProperty, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.ComplexAck == nil {
		return nil, fmt.Errorf("client: ReadProperty got no complex-ack")
	}
	ack, err := service.DecodeReadPropertyACK(res.ComplexAck.ServiceData)
	if err != nil {
		return nil, err
	}
	return ack.Value, nil
}

// WriteProperty issues a Confirmed-Write-Property request. priority is nil
// for non-commandable properties.
func (c *Client) WriteProperty(ctx context.Context, dest bactypes.Address, objectID bactypes.ObjectID, prop object.PropertyID, value bactypes.Value, priority *int, arrayIndex *uint32) error {
	req := service.WritePropertyRequest{ObjectID: objectID, Property: prop, ArrayIndex: arrayIndex, Value: value, Priority: priority}
	res := c.tsm.Request(ctx, dest, service.ServiceWriteProperty, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return res.Err
	}
	if res.SimpleAck == nil {
		return fmt.Errorf("client: WriteProperty got no simple-ack")
	}
	return nil
}

// DiscoverHandler receives every I-Am seen while WhoIs is outstanding.
type DiscoverHandler func(device bactypes.ObjectID, maxAPDU uint32, segmentation uint32, vendorID uint32, source bactypes.Address)

// WhoHasHandler receives every I-Have seen while WhoHas is outstanding.
type WhoHasHandler func(device bactypes.ObjectID, objectID bactypes.ObjectID, objectName string, source bactypes.Address)

// WhoIs broadcasts a Who-Is and forwards every I-Am the network layer
// delivers to handler until ctx is cancelled. Unlike confirmed requests
// this never resolves a single Result — it is a fire-and-collect pattern.
func (c *Client) WhoIs(ctx context.Context, lowLimit, highLimit *uint32, handler DiscoverHandler) error {
	id := c.addIAmListener(handler)
	defer c.removeIAmListener(id)

	req := service.WhoIsRequest{LowLimit: lowLimit, HighLimit: highLimit}
	if err := c.net.Send(wrapUnconfirmed(service.ServiceWhoIs, req.Encode()), bactypes.LocalBroadcast(), false); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

// DiscoveredDevice is one WhoIs answer collected by Discover.
type DiscoveredDevice struct {
	DeviceID     bactypes.ObjectID
	MaxAPDU      uint32
	Segmentation uint32
	VendorID     uint32
	Address      bactypes.Address
}

// Discover broadcasts a Who-Is and collects every distinct answering
// device until ctx expires (give it a deadline).
func (c *Client) Discover(ctx context.Context, lowLimit, highLimit *uint32) ([]DiscoveredDevice, error) {
	var mu sync.Mutex
	seen := make(map[bactypes.ObjectID]bool)
	var devices []DiscoveredDevice

	err := c.WhoIs(ctx, lowLimit, highLimit, func(device bactypes.ObjectID, maxAPDU, segmentation, vendorID uint32, source bactypes.Address) {
		mu.Lock()
		defer mu.Unlock()
		if seen[device] {
			return
		}
		seen[device] = true
		devices = append(devices, DiscoveredDevice{
			DeviceID: device, MaxAPDU: maxAPDU, Segmentation: segmentation,
			VendorID: vendorID, Address: source,
		})
	})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	return devices, nil
}

// WhoHas broadcasts a Who-Has naming an object by identifier or name and
// forwards every I-Have to handler until ctx is cancelled.
func (c *Client) WhoHas(ctx context.Context, req service.WhoHasRequest, handler WhoHasHandler) error {
	id := c.addIHaveListener(handler)
	defer c.removeIHaveListener(id)

	if err := c.net.Send(wrapUnconfirmed(service.ServiceWhoHas, req.Encode()), bactypes.LocalBroadcast(), false); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

// SubscribeCOV issues a Confirmed-Subscribe-COV request to establish or
// refresh a subscription. lifetimeSeconds of 0 requests an indefinite
// subscription.
func (c *Client) SubscribeCOV(ctx context.Context, dest bactypes.Address, processID uint32, objectID bactypes.ObjectID, confirmedNotifications bool, lifetimeSeconds uint32) error {
	req := service.SubscribeCOVRequest{ProcessID: processID, MonitoredObjectID: objectID, IssueConfirmedNotifications: confirmedNotifications, Lifetime: lifetimeSeconds}
	res := c.tsm.Request(ctx, dest, service.ServiceSubscribeCOV, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return res.Err
	}
	if res.SimpleAck == nil {
		return fmt.Errorf("client: SubscribeCOV got no simple-ack")
	}
	return nil
}

// UnsubscribeCOV cancels a previously established subscription.
func (c *Client) UnsubscribeCOV(ctx context.Context, dest bactypes.Address, processID uint32, objectID bactypes.ObjectID) error {
	req := service.SubscribeCOVRequest{ProcessID: processID, MonitoredObjectID: objectID, Cancellation: true}
	res := c.tsm.Request(ctx, dest, service.ServiceSubscribeCOV, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return res.Err
	}
	if res.SimpleAck == nil {
		return fmt.Errorf("client: UnsubscribeCOV got no simple-ack")
	}
	return nil
}

// GetObjectList reads a device's full Object_List by walking the virtual
// array one element at a time.
func (c *Client) GetObjectList(ctx context.Context, dest bactypes.Address, deviceID bactypes.ObjectID) ([]bactypes.ObjectID, error) {
	zero := uint32(0)
	countVal, err := c.ReadProperty(ctx, dest, deviceID, object.PropObjectList, &zero)
	if err != nil {
		return nil, err
	}
	count, ok := countVal.(bactypes.Unsigned)
	if !ok {
		return nil, fmt.Errorf("client: object-list count is not unsigned")
	}

	var ids []bactypes.ObjectID
	for i := uint32(1); i <= uint32(count); i++ {
		idx := i
		v, err := c.ReadProperty(ctx, dest, deviceID, object.PropObjectList, &idx)
		if err != nil {
			return nil, err
		}
		id, ok := v.(bactypes.ObjectID)
		if !ok {
			return nil, fmt.Errorf("client: object-list element %d is not an object identifier", i)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TimeSynchronization sends an unconfirmed Time-Synchronization broadcast.
func (c *Client) TimeSynchronization(date bactypes.Date, clock bactypes.Time) error {
	dateBytes, err := primitive.EncodeValue(date)
	if err != nil {
		return err
	}
	timeBytes, err := primitive.EncodeValue(clock)
	if err != nil {
		return err
	}
	data := append(dateBytes, timeBytes...)
	return c.net.Send(wrapUnconfirmed(service.ServiceTimeSynchronization, data), bactypes.LocalBroadcast(), false)
}

// ReadMultiple issues a Confirmed-Read-Property-Multiple request and
// returns the per-object, per-property results (inline errors included).
func (c *Client) ReadMultiple(ctx context.Context, dest bactypes.Address, specs []service.ReadAccessSpec) ([]service.ReadAccessResult, error) {
	req := service.ReadPropertyMultipleRequest{Specs: specs}
	res := c.tsm.Request(ctx, dest, service.ServiceReadPropertyMultiple, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.ComplexAck == nil {
		return nil, fmt.Errorf("client: ReadPropertyMultiple got no complex-ack")
	}
	ack, err := service.DecodeReadPropertyMultipleACK(res.ComplexAck.ServiceData)
	if err != nil {
		return nil, err
	}
	return ack.Results, nil
}

// WriteMultiple issues a Confirmed-Write-Property-Multiple request.
func (c *Client) WriteMultiple(ctx context.Context, dest bactypes.Address, specs []service.WriteAccessSpec) error {
	req := service.WritePropertyMultipleRequest{Specs: specs}
	res := c.tsm.Request(ctx, dest, service.ServiceWritePropertyMultiple, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return res.Err
	}
	if res.SimpleAck == nil {
		return fmt.Errorf("client: WritePropertyMultiple got no simple-ack")
	}
	return nil
}

// ReadRange issues a Confirmed-Read-Range request and returns the decoded
// ACK; the raw item bytes are the caller's to interpret.
func (c *Client) ReadRange(ctx context.Context, dest bactypes.Address, req service.ReadRangeRequest) (service.ReadRangeACK, error) {
	res := c.tsm.Request(ctx, dest, service.ServiceReadRange, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return service.ReadRangeACK{}, res.Err
	}
	if res.ComplexAck == nil {
		return service.ReadRangeACK{}, fmt.Errorf("client: ReadRange got no complex-ack")
	}
	return service.DecodeReadRangeACK(res.ComplexAck.ServiceData)
}

// ReadFile reads count octets from octet offset start of a remote File
// object (stream access).
func (c *Client) ReadFile(ctx context.Context, dest bactypes.Address, fileID bactypes.ObjectID, start int64, count uint64) (data []byte, eof bool, err error) {
	req := service.AtomicReadFileRequest{FileID: fileID, Start: start, Count: count}
	res := c.tsm.Request(ctx, dest, service.ServiceAtomicReadFile, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return nil, false, res.Err
	}
	if res.ComplexAck == nil {
		return nil, false, fmt.Errorf("client: AtomicReadFile got no complex-ack")
	}
	ack, err := service.DecodeAtomicReadFileACK(res.ComplexAck.ServiceData)
	if err != nil {
		return nil, false, err
	}
	return ack.Data, ack.EndOfFile, nil
}

// WriteFile writes data at octet offset start of a remote File object
// (stream access; start of -1 appends). Returns the offset the write
// landed at.
func (c *Client) WriteFile(ctx context.Context, dest bactypes.Address, fileID bactypes.ObjectID, start int64, data []byte) (int64, error) {
	req := service.AtomicWriteFileRequest{FileID: fileID, Start: start, Data: data}
	res := c.tsm.Request(ctx, dest, service.ServiceAtomicWriteFile, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return 0, res.Err
	}
	if res.ComplexAck == nil {
		return 0, fmt.Errorf("client: AtomicWriteFile got no complex-ack")
	}
	ack, err := service.DecodeAtomicWriteFileACK(res.ComplexAck.ServiceData)
	if err != nil {
		return 0, err
	}
	return ack.Start, nil
}

// CreateObject asks a remote device to instantiate an object and returns
// the identifier it assigned.
func (c *Client) CreateObject(ctx context.Context, dest bactypes.Address, req service.CreateObjectRequest) (bactypes.ObjectID, error) {
	res := c.tsm.Request(ctx, dest, service.ServiceCreateObject, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return bactypes.ObjectID{}, res.Err
	}
	if res.ComplexAck == nil {
		return bactypes.ObjectID{}, fmt.Errorf("client: CreateObject got no complex-ack")
	}
	ack, err := service.DecodeCreateObjectACK(res.ComplexAck.ServiceData)
	if err != nil {
		return bactypes.ObjectID{}, err
	}
	return ack.ObjectID, nil
}

// DeleteObject asks a remote device to delete an object.
func (c *Client) DeleteObject(ctx context.Context, dest bactypes.Address, objectID bactypes.ObjectID) error {
	req := service.DeleteObjectRequest{ObjectID: objectID}
	res := c.tsm.Request(ctx, dest, service.ServiceDeleteObject, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return res.Err
	}
	if res.SimpleAck == nil {
		return fmt.Errorf("client: DeleteObject got no simple-ack")
	}
	return nil
}

// AddListElement appends elements to a remote list-valued property.
func (c *Client) AddListElement(ctx context.Context, dest bactypes.Address, req service.ListElementRequest) error {
	return c.listElement(ctx, dest, service.ServiceAddListElement, req)
}

// RemoveListElement removes elements from a remote list-valued property.
func (c *Client) RemoveListElement(ctx context.Context, dest bactypes.Address, req service.ListElementRequest) error {
	return c.listElement(ctx, dest, service.ServiceRemoveListElement, req)
}

func (c *Client) listElement(ctx context.Context, dest bactypes.Address, serviceChoice byte, req service.ListElementRequest) error {
	res := c.tsm.Request(ctx, dest, serviceChoice, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return res.Err
	}
	if res.SimpleAck == nil {
		return fmt.Errorf("client: list-element service %d got no simple-ack", serviceChoice)
	}
	return nil
}

// DeviceCommunicationControl tells a remote device to stop or resume
// communicating. durationMinutes of nil disables indefinitely.
func (c *Client) DeviceCommunicationControl(ctx context.Context, dest bactypes.Address, enable service.CommState, durationMinutes *uint16, password *string) error {
	req := service.DeviceCommunicationControlRequest{TimeDurationMinutes: durationMinutes, Enable: enable, Password: password}
	res := c.tsm.Request(ctx, dest, service.ServiceDeviceCommunicationControl, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return res.Err
	}
	if res.SimpleAck == nil {
		return fmt.Errorf("client: DeviceCommunicationControl got no simple-ack")
	}
	return nil
}

// ReinitializeDevice asks a remote device to restart.
func (c *Client) ReinitializeDevice(ctx context.Context, dest bactypes.Address, state service.ReinitState, password *string) error {
	req := service.ReinitializeDeviceRequest{State: state, Password: password}
	res := c.tsm.Request(ctx, dest, service.ServiceReinitializeDevice, req.Encode(), apdu.MaxAPDU1476)
	if res.Err != nil {
		return res.Err
	}
	if res.SimpleAck == nil {
		return fmt.Errorf("client: ReinitializeDevice got no simple-ack")
	}
	return nil
}

// UTCTimeSynchronization sends an unconfirmed UTC-Time-Synchronization
// broadcast.
func (c *Client) UTCTimeSynchronization(date bactypes.Date, clock bactypes.Time) error {
	req := service.TimeSynchronizationRequest{Date: date, Time: clock}
	return c.net.Send(wrapUnconfirmed(service.ServiceUTCTimeSynchronization, req.Encode()), bactypes.LocalBroadcast(), false)
}

func wrapUnconfirmed(serviceChoice byte, serviceData []byte) []byte {
	pdu := apdu.UnconfirmedRequest{ServiceChoice: serviceChoice, ServiceData: serviceData}
	return pdu.Encode()
}
