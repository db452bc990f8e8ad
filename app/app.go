// Package app wires one BACnet device together: the transport port, network
// layer, server-side Transaction State Machine, object database, and the
// COV/Schedule/TrendLog engines, dispatching incoming confirmed and
// unconfirmed service requests against the database. Grounded on the
// teacher's single main.go wiring a socket straight to its request
// handlers, generalized into a reusable Application type.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/apdu"
	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/cov"
	"github.com/bacgo/bacnet/metrics"
	"github.com/bacgo/bacnet/network"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/schedule"
	"github.com/bacgo/bacnet/service"
	"github.com/bacgo/bacnet/transport"
	"github.com/bacgo/bacnet/trendlog"
	"github.com/bacgo/bacnet/tsm"
)

// DeviceConfig names the fixed identity fields a device advertises in I-Am
// and Device object properties.
type DeviceConfig struct {
	DeviceID         bactypes.ObjectID
	Name             string
	VendorName       string
	VendorID         uint32
	FirmwareRevision string
	APDUTimeout      time.Duration
	APDURetries      int
	SegmentWindow    byte

	// Password gates DeviceCommunicationControl and ReinitializeDevice.
	// Empty means no password is required.
	Password string
	// OnReinitialize, when set, is invoked after a ReinitializeDevice
	// request passes the password check and is acknowledged.
	OnReinitialize func(state service.ReinitState)
	// OnTimeSync, when set, receives every (UTC)Time-Synchronization
	// broadcast the device hears.
	OnTimeSync func(date bactypes.Date, clock bactypes.Time, utc bool)
}

// Application is one running BACnet device: the full stack from transport
// port up through the protocol engines, dispatching against a shared
// object.Database.
type Application struct {
	cfg DeviceConfig

	port    transport.Port
	net     *network.Layer
	server  *tsm.Server
	client  *tsm.Client
	db      *object.Database
	covMgr  *cov.Manager
	schedEngine *schedule.Engine
	trendEngine *trendlog.Engine

	// Device-Communication-Control state. commMu guards it because the
	// re-enable timer fires on its own goroutine.
	commMu           sync.Mutex
	commDisabled     bool // responses suppressed
	initiationOff    bool // I-Am/I-Have/COV sends suppressed
	commEnableTimer  *time.Timer

	log *logrus.Entry
}

// New builds an Application over port, registering a Device object in a
// fresh Database. Callers add further objects via Database() before
// calling Start.
func New(cfg DeviceConfig, port transport.Port) *Application {
	net := network.New(port)
	db := object.NewDatabase()
	device := object.NewDevice(cfg.DeviceID, cfg.Name, cfg.VendorName, cfg.VendorID, cfg.FirmwareRevision)
	db.SetDevice(device)

	a := &Application{
		cfg:         cfg,
		port:        port,
		net:         net,
		db:          db,
		schedEngine: schedule.NewEngine(nil),
		trendEngine: trendlog.NewEngine(),
		log:         logrus.WithField("component", "app").WithField("device", cfg.DeviceID.Instance),
	}

	a.client = tsm.NewClient(net, cfg.APDUTimeout, cfg.APDURetries)
	a.server = tsm.NewServer(net, a.handle, cfg.APDUTimeout*time.Duration(cfg.APDURetries+1))
	a.covMgr = cov.NewManager(db, a.notifyCOV)

	net.OnReceive(a.handleUnconfirmed)
	return a
}

// Database exposes the object database for population before Start.
func (a *Application) Database() *object.Database { return a.db }

// Schedules exposes the schedule engine for registering Schedule objects.
func (a *Application) Schedules() *schedule.Engine { return a.schedEngine }

// TrendLogs exposes the trend log engine for registering Trend Logs: the
// engine polls the polled ones, and every registered log serves ReadRange.
func (a *Application) TrendLogs() *trendlog.Engine { return a.trendEngine }

// Client exposes the outbound request facade for this device to act as a
// BACnet client toward other devices.
func (a *Application) Client() *tsm.Client { return a.client }

// Start brings up the transport port and every background engine; it
// blocks until ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	if err := a.port.Start(ctx); err != nil {
		return fmt.Errorf("app: starting transport: %w", err)
	}
	go a.server.Run(ctx)
	go a.covMgr.Run(ctx, time.Minute)
	go a.schedEngine.Run(ctx, time.Minute)
	go a.trendEngine.Run(ctx)
	a.announce()
	<-ctx.Done()
	a.commMu.Lock()
	if a.commEnableTimer != nil {
		a.commEnableTimer.Stop()
	}
	a.commMu.Unlock()
	return a.port.Stop(context.Background())
}

// setCommState applies a Device-Communication-Control request, arming a
// re-enable timer when the disable carries a time duration.
func (a *Application) setCommState(state service.CommState, durationMinutes *uint16) {
	a.commMu.Lock()
	defer a.commMu.Unlock()
	if a.commEnableTimer != nil {
		a.commEnableTimer.Stop()
		a.commEnableTimer = nil
	}
	switch state {
	case service.CommEnable:
		a.commDisabled = false
		a.initiationOff = false
	case service.CommDisable:
		a.commDisabled = true
		a.initiationOff = true
	case service.CommDisableInitiation:
		a.commDisabled = false
		a.initiationOff = true
	}
	if (a.commDisabled || a.initiationOff) && durationMinutes != nil && *durationMinutes > 0 {
		a.commEnableTimer = time.AfterFunc(time.Duration(*durationMinutes)*time.Minute, func() {
			a.setCommState(service.CommEnable, nil)
		})
	}
}

func (a *Application) responsesDisabled() bool {
	a.commMu.Lock()
	defer a.commMu.Unlock()
	return a.commDisabled
}

func (a *Application) initiationDisabled() bool {
	a.commMu.Lock()
	defer a.commMu.Unlock()
	return a.initiationOff
}

func (a *Application) announce() {
	if a.initiationDisabled() {
		return
	}
	iam := service.IAmRequest{
		DeviceID:             a.cfg.DeviceID,
		MaxAPDULength:        uint32(apdu.MaxAPDU1476.Length()),
		SegmentationSupported: 0, // both transmit and receive
		VendorID:             a.cfg.VendorID,
	}
	pdu := apdu.UnconfirmedRequest{ServiceChoice: service.ServiceIAm, ServiceData: iam.Encode()}
	if err := a.net.Send(pdu.Encode(), bactypes.LocalBroadcast(), false); err != nil {
		a.log.WithError(err).Warn("failed to broadcast I-Am")
	}
}

// handleUnconfirmed answers Who-Is with I-Am and Who-Has with I-Have, and
// passes (UTC)Time-Synchronization to the OnTimeSync callback; every other
// unconfirmed service is logged and dropped rather than acted on.
func (a *Application) handleUnconfirmed(raw []byte, source bactypes.Address, expectingReply bool) {
	pduType, err := apdu.PDUType(raw)
	if err != nil || pduType != apdu.TypeUnconfirmedRequest {
		return
	}
	req, err := apdu.DecodeUnconfirmedRequest(raw)
	if err != nil {
		return
	}
	switch req.ServiceChoice {
	case service.ServiceWhoIs:
		whois, err := service.DecodeWhoIsRequest(req.ServiceData)
		if err != nil {
			return
		}
		if whois.LowLimit != nil && whois.HighLimit != nil &&
			(a.cfg.DeviceID.Instance < *whois.LowLimit || a.cfg.DeviceID.Instance > *whois.HighLimit) {
			return
		}
		a.announce()
	case service.ServiceWhoHas:
		a.handleWhoHas(req.ServiceData)
	case service.ServiceTimeSynchronization:
		a.handleTimeSync(req.ServiceData, false)
	case service.ServiceUTCTimeSynchronization:
		a.handleTimeSync(req.ServiceData, true)
	default:
		a.log.WithField("service", req.ServiceChoice).Debug("ignoring unconfirmed service")
	}
}

// handleWhoHas answers with I-Have when the named object lives in our
// database.
func (a *Application) handleWhoHas(data []byte) {
	whohas, err := service.DecodeWhoHasRequest(data)
	if err != nil {
		return
	}
	if whohas.LowLimit != nil && whohas.HighLimit != nil &&
		(a.cfg.DeviceID.Instance < *whohas.LowLimit || a.cfg.DeviceID.Instance > *whohas.HighLimit) {
		return
	}

	var match object.Object
	switch {
	case whohas.ObjectID != nil:
		obj, err := a.db.Get(*whohas.ObjectID)
		if err != nil {
			return
		}
		match = obj
	case whohas.ObjectName != nil:
		for _, id := range a.db.List() {
			obj, err := a.db.Get(id)
			if err != nil {
				continue
			}
			if obj.Name() == *whohas.ObjectName {
				match = obj
				break
			}
		}
	}
	if match == nil || a.initiationDisabled() {
		return
	}

	ihave := service.IHaveRequest{DeviceID: a.cfg.DeviceID, ObjectID: match.ID(), ObjectName: match.Name()}
	pdu := apdu.UnconfirmedRequest{ServiceChoice: service.ServiceIHave, ServiceData: ihave.Encode()}
	if err := a.net.Send(pdu.Encode(), bactypes.LocalBroadcast(), false); err != nil {
		a.log.WithError(err).Warn("failed to broadcast I-Have")
	}
}

func (a *Application) handleTimeSync(data []byte, utc bool) {
	req, err := service.DecodeTimeSynchronizationRequest(data)
	if err != nil {
		return
	}
	a.log.WithField("date", req.Date.String()).WithField("time", req.Time.String()).WithField("utc", utc).Info("time synchronization received")
	if a.cfg.OnTimeSync != nil {
		a.cfg.OnTimeSync(req.Date, req.Time, utc)
	}
}

// handle dispatches a confirmed-request service against the database.
// While Device-Communication-Control has responses disabled, every service
// except DeviceCommunicationControl and ReinitializeDevice is silently
// dropped. Unimplemented services respond Reject(unrecognized-service).
func (a *Application) handle(source bactypes.Address, serviceChoice byte, serviceData []byte) tsm.Response {
	if a.responsesDisabled() &&
		serviceChoice != service.ServiceDeviceCommunicationControl &&
		serviceChoice != service.ServiceReinitializeDevice {
		return tsm.Response{Kind: tsm.RespNone}
	}
	switch serviceChoice {
	case service.ServiceReadProperty:
		return a.handleReadProperty(serviceData)
	case service.ServiceReadPropertyMultiple:
		return a.handleReadPropertyMultiple(serviceData)
	case service.ServiceWriteProperty:
		return a.handleWriteProperty(serviceData)
	case service.ServiceWritePropertyMultiple:
		return a.handleWritePropertyMultiple(serviceData)
	case service.ServiceSubscribeCOV:
		return a.handleSubscribeCOV(source, serviceData)
	case service.ServiceReadRange:
		return a.handleReadRange(serviceData)
	case service.ServiceAtomicReadFile:
		return a.handleAtomicReadFile(serviceData)
	case service.ServiceAtomicWriteFile:
		return a.handleAtomicWriteFile(serviceData)
	case service.ServiceCreateObject:
		return a.handleCreateObject(serviceData)
	case service.ServiceDeleteObject:
		return a.handleDeleteObject(serviceData)
	case service.ServiceAddListElement:
		return a.handleListElement(serviceChoice, serviceData, true)
	case service.ServiceRemoveListElement:
		return a.handleListElement(serviceChoice, serviceData, false)
	case service.ServiceDeviceCommunicationControl:
		return a.handleDeviceCommunicationControl(serviceData)
	case service.ServiceReinitializeDevice:
		return a.handleReinitializeDevice(serviceData)
	default:
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectUnrecognizedService}
	}
}

func (a *Application) handleReadProperty(data []byte) tsm.Response {
	req, err := service.DecodeReadPropertyRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	value, err := a.db.Read(req.ObjectID, req.Property, req.ArrayIndex)
	if err != nil {
		return errorResponse(service.ServiceReadProperty, err)
	}
	ack := service.ReadPropertyACK{ObjectID: req.ObjectID, Property: req.Property, ArrayIndex: req.ArrayIndex, Value: value}
	return tsm.Response{Kind: tsm.RespComplexAck, ServiceChoice: service.ServiceReadProperty, Data: ack.Encode()}
}

func (a *Application) handleWriteProperty(data []byte) tsm.Response {
	req, err := service.DecodeWritePropertyRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	if err := a.db.Write(req.ObjectID, req.Property, req.Value, req.Priority, req.ArrayIndex); err != nil {
		return errorResponse(service.ServiceWriteProperty, err)
	}
	return tsm.Response{Kind: tsm.RespSimpleAck, ServiceChoice: service.ServiceWriteProperty}
}

func (a *Application) handleSubscribeCOV(source bactypes.Address, data []byte) tsm.Response {
	req, err := service.DecodeSubscribeCOVRequest(data)
	if err != nil {
		return tsm.Response{Kind: tsm.RespReject, RejectReason: bacerr.RejectInvalidTag}
	}
	if req.Cancellation {
		a.covMgr.Unsubscribe(source, req.ProcessID, req.MonitoredObjectID)
	} else {
		a.covMgr.Subscribe(source, req.ProcessID, req.MonitoredObjectID, req.IssueConfirmedNotifications, req.Lifetime)
	}
	return tsm.Response{Kind: tsm.RespSimpleAck, ServiceChoice: service.ServiceSubscribeCOV}
}

// notifyCOV is the cov.Notifier this Application wires in: it sends a
// Confirmed- or Unconfirmed-COV-Notification depending on the
// subscription's requested kind.
func (a *Application) notifyCOV(sub cov.Subscription, values map[object.PropertyID]bactypes.Value) error {
	if a.initiationDisabled() {
		return nil
	}
	notification := service.COVNotificationRequest{
		ProcessID:          sub.ProcessID,
		InitiatingDeviceID: a.cfg.DeviceID,
		MonitoredObjectID:  sub.ObjectID,
		TimeRemaining:      timeRemaining(sub),
		Values:             values,
	}
	if !sub.Confirmed {
		pdu := apdu.UnconfirmedRequest{ServiceChoice: service.ServiceUnconfirmedCOVNotification, ServiceData: notification.Encode()}
		return a.net.Send(pdu.Encode(), sub.Subscriber, false)
	}
	// Confirmed notifications wait for the subscriber's SimpleAck subject
	// to the client TSM's timeout; that wait must not stall the caller
	// (the initial notification fires from inside the SubscribeCOV
	// handler, before our own SimpleAck goes out).
	go func() {
		res := a.client.Request(context.Background(), sub.Subscriber, service.ServiceConfirmedCOVNotification, notification.Encode(), apdu.MaxAPDU1476)
		if res.Err != nil {
			a.log.WithError(res.Err).WithField("subscriber", sub.Subscriber).Warn("confirmed cov notification failed")
		}
	}()
	return nil
}

func timeRemaining(sub cov.Subscription) uint32 {
	if sub.ExpiresAt.IsZero() {
		return 0
	}
	remaining := time.Until(sub.ExpiresAt)
	if remaining <= 0 {
		return 0
	}
	return uint32(remaining.Seconds())
}

func errorResponse(serviceChoice byte, err error) tsm.Response {
	var berr *bacerr.Error
	if be, ok := err.(*bacerr.Error); ok {
		berr = be
	} else {
		berr = bacerr.Protocol(bacerr.ClassDevice, bacerr.CodeOther)
	}
	metrics.NPDUDropped.WithLabelValues("service-error").Inc()
	return tsm.Response{Kind: tsm.RespError, ServiceChoice: serviceChoice, Class: berr.Class, Code: berr.Code}
}
